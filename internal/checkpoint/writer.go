package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Save writes a state dictionary to path in .lmck format. Tensors are written
// in sorted name order so identical state produces identical files. With
// halfPrecision set, float32 tensors are stored as 16-bit floats.
func Save(path string, state map[string]*tensor.RawTensor, meta Meta, halfPrecision bool) error {
	if len(state) == 0 {
		return fmt.Errorf("cannot save empty state dictionary")
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		Model:         meta.Model,
		Epoch:         meta.Epoch,
		Loss:          meta.Loss,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(state)),
	}

	var data []byte
	for _, name := range names {
		raw := state[name]
		encoded, dtypeName, err := encodeTensor(raw, halfPrecision)
		if err != nil {
			return fmt.Errorf("encode tensor %s: %w", name, err)
		}

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeName,
			Shape:  []int(raw.Shape()),
			Offset: int64(len(data)),
			Size:   int64(len(encoded)),
		})
		data = append(data, encoded...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	checksum := computeChecksum(data)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	var flags uint32
	if halfPrecision {
		flags |= FlagHalfPrecision
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	padding := paddingFor(int64(FixedHeaderSize + len(headerJSON)))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer file.Close()

	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		if _, err := file.Write(chunk); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
	}

	return nil
}

// paddingFor returns the number of zero bytes needed to align pos to the
// tensor data alignment.
func paddingFor(pos int64) int64 {
	return (DataAlignment - pos%DataAlignment) % DataAlignment
}

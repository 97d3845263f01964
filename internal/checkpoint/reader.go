package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Load reads a .lmck checkpoint and reconstructs its state dictionary.
// Half-precision tensors are widened back to float32. The returned header
// carries the run metadata recorded at save time.
func Load(path string) (map[string]*tensor.RawTensor, *Header, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	if len(buf) < FixedHeaderSize {
		return nil, nil, fmt.Errorf("%w: file too small (%d bytes)", ErrFormat, len(buf))
	}
	if string(buf[0:4]) != MagicBytes {
		return nil, nil, fmt.Errorf("%w: bad magic bytes %q", ErrFormat, buf[0:4])
	}

	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}

	headerSize := binary.LittleEndian.Uint64(buf[16:24])
	dataSize := binary.LittleEndian.Uint64(buf[24:32])
	var checksum [ChecksumSize]byte
	copy(checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	dataStart := headerEnd + paddingFor(headerEnd)
	dataEnd := dataStart + int64(dataSize)
	if headerEnd > int64(len(buf)) || dataEnd > int64(len(buf)) {
		return nil, nil, fmt.Errorf("%w: truncated file", ErrFormat)
	}

	var header Header
	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	data := buf[dataStart:dataEnd]
	if err := validateChecksum(data, checksum); err != nil {
		return nil, nil, err
	}

	state := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(data)) {
			return nil, nil, fmt.Errorf("%w: tensor %s out of bounds", ErrFormat, meta.Name)
		}
		raw, err := decodeTensor(meta, data[meta.Offset:meta.Offset+meta.Size])
		if err != nil {
			return nil, nil, err
		}
		state[meta.Name] = raw
	}

	return state, &header, nil
}

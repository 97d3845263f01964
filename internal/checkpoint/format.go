// Package checkpoint implements the .lmck binary checkpoint format used to
// persist model and optimizer state between training runs.
//
// Layout:
//
//	0x00-0x03  magic bytes "LMCK"
//	0x04-0x07  format version (uint32, little-endian)
//	0x08-0x0B  flags (uint32)
//	0x0C-0x0F  reserved
//	0x10-0x17  JSON header size (uint64)
//	0x18-0x1F  tensor data size (uint64)
//	0x20-0x3F  SHA-256 checksum of the tensor data section
//	0x40-...   JSON header, padding to 64-byte alignment, tensor data
package checkpoint

import (
	"errors"
	"time"
)

const (
	// MagicBytes identifies a Lumen checkpoint file.
	MagicBytes = "LMCK"

	// FormatVersion is the current checkpoint format version.
	FormatVersion = 1

	// FixedHeaderSize is the size of the fixed binary header in bytes.
	FixedHeaderSize = 64

	// ChecksumOffset is the byte offset of the SHA-256 checksum within the
	// fixed header.
	ChecksumOffset = 0x20

	// ChecksumSize is the length of the SHA-256 checksum in bytes.
	ChecksumSize = 32

	// DataAlignment is the alignment of the tensor data section.
	DataAlignment = 64
)

// Flag bits stored in the fixed header.
const (
	// FlagHalfPrecision marks a checkpoint whose float32 tensors were
	// stored as 16-bit floats.
	FlagHalfPrecision uint32 = 1 << 0
)

// ErrFormat is returned when a file is not a valid Lumen checkpoint.
var ErrFormat = errors.New("invalid checkpoint format")

// ErrChecksum is returned when the stored checksum does not match the
// tensor data, indicating a corrupted or truncated checkpoint.
var ErrChecksum = errors.New("checkpoint checksum mismatch")

// Header is the JSON metadata block following the fixed binary header.
type Header struct {
	FormatVersion int          `json:"format_version"`
	Model         string       `json:"model"`
	Epoch         int          `json:"epoch"`
	Loss          float64      `json:"loss"`
	CreatedAt     time.Time    `json:"created_at"`
	Tensors       []TensorMeta `json:"tensors"`
}

// TensorMeta describes one tensor in the data section. Offset and Size refer
// to the stored bytes, which for half-precision float32 tensors are smaller
// than the in-memory representation.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Meta carries the run information recorded in a checkpoint header.
type Meta struct {
	Model string
	Epoch int
	Loss  float64
}

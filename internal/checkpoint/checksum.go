package checkpoint

import (
	"crypto/sha256"
	"fmt"
)

// computeChecksum returns the SHA-256 digest of the tensor data section.
func computeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// validateChecksum compares the stored digest against the actual tensor data.
func validateChecksum(data []byte, want [ChecksumSize]byte) error {
	got := computeChecksum(data)
	if got != want {
		return fmt.Errorf("%w: expected %x, got %x", ErrChecksum, want, got)
	}
	return nil
}

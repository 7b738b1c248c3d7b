package common

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashFile computes the content hash of a file without loading it into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// HashBytes computes the content hash of an in-memory buffer.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

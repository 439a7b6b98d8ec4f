//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Fallback for platforms without mmap support: read the whole file.
// The Data slice is heap-backed; osUnmap is a no-op.
func osMap(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func osUnmap([]byte) error { return nil }

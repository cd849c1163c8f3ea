package mmdbcore

import (
	"errors"
	"os"

	mmapgo "github.com/edsrzf/mmap-go"
)

// mmap memory-maps length bytes of f for reading. Every mapping failure is
// returned wrapped in errors.ErrUnsupported, so the caller falls back to
// reading the file into memory whenever mapping fails.
func mmap(f *os.File, length int) ([]byte, error) {
	m, err := mmapgo.MapRegion(f, length, mmapgo.RDONLY, 0, 0)
	if err != nil {
		return nil, errors.Join(errors.ErrUnsupported, err)
	}
	return []byte(m), nil
}

func munmap(b []byte) error {
	return mmapgo.MMap(b).Unmap()
}

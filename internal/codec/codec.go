// Package codec provides the minimal on-disk file transfer a flush
// target and an initializer need: write a byte blob durably (write to
// temp, fsync, rename) and read it back. It is not a reimplementation
// of any real attribute wire format; attribute.Typed[T].ExportBytes and
// ImportBytes own the actual encoding (gob), so this package only
// handles getting those bytes to and from a path safely.
package codec

import (
	"bufio"
	"fmt"
	"os"
)

// WriteFile durably writes data to path: write-to-temp, fsync,
// rename-into-place, so a crash mid-write can never leave a
// half-written snapshot file visible under the final name.
func WriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("codec: create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("codec: write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("codec: flush %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("codec: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("codec: close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("codec: rename %s: %w", path, err)
	}
	return nil
}

// ReadFile reads back a file written by WriteFile.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: read %s: %w", path, err)
	}
	return data, nil
}

//go:build !windows

package link

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

func createSymlink(path, target string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.Symlink(target, path)
}

// swapSymlink repoints path atomically via rename of a temporary link.
// The temporary name is unique, so no existing entry is ever replaced.
func swapSymlink(path, newTarget string) error {
	tmpLink := filepath.Join(filepath.Dir(path), ".silk-relink-"+uuid.NewString())
	if err := os.Symlink(newTarget, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, path); err != nil {
		os.Remove(tmpLink)
		return err
	}
	return nil
}

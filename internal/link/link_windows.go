//go:build windows

package link

import (
	"os"
	"path/filepath"
)

// createSymlink creates a directory symlink.
// May require elevated privileges or Developer Mode.
func createSymlink(path, target string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.Symlink(target, path)
}

// swapSymlink removes and recreates; Windows cannot rename over a symlink
func swapSymlink(path, newTarget string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(newTarget, path)
}

package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// LinkPDAL symlinks src to dst when nothing usable is there yet. An
// existing file, directory or resolvable symlink at dst is left alone; a
// dangling symlink is replaced.
func LinkPDAL(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := unix.Access(filepath.Dir(dst), unix.W_OK); err != nil {
		return fmt.Errorf("link %s: directory not writable: %w", dst, err)
	}
	// Stat follows symlinks, so a dangling link reports not-exist. Remove
	// the leftover entry before linking over it.
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	if err := os.Symlink(src, dst); err != nil {
		return fmt.Errorf("link %s: %w", dst, err)
	}
	return nil
}

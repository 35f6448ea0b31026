package lnutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CreateDir creates a directory and all of its parents. A dangling symlink in
// place of the directory is reported as such, as it usually means a volume
// that isn't mounted.
func CreateDir(dir string, perm os.FileMode) error {
	err := os.MkdirAll(dir, perm)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(err, os.ErrExist) {
		if info, lerr := os.Lstat(dir); lerr == nil &&
			info.Mode()&os.ModeSymlink != 0 {

			link, _ := os.Readlink(dir)
			return fmt.Errorf("is symlink %s -> %s mounted?", dir,
				link)
		}
	}

	return fmt.Errorf("failed to create directory '%s': %w",
		filepath.Clean(dir), err)
}

//go:build !windows

package ops

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

func deleteResolvedPath(parentPath, baseName string) error {
	parentFD, err := unix.Open(parentPath, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(parentFD)

	return unlinkFileAt(parentFD, baseName)
}

// unlinkFileAt removes name relative to parentFD without following symlinks.
// Directories are refused.
func unlinkFileAt(parentFD int, name string) error {
	var st unix.Stat_t
	if err := unix.Fstatat(parentFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return fs.ErrNotExist
		}
		return err
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return fmt.Errorf("%s: %w", name, ErrNotFile)
	}

	if err := unix.Unlinkat(parentFD, name, 0); err != nil {
		switch {
		case errors.Is(err, unix.ENOENT):
			return fs.ErrNotExist
		case errors.Is(err, unix.EISDIR):
			// Swapped for a directory since the stat.
			return fmt.Errorf("%s: %w", name, ErrNotFile)
		}
		return err
	}
	return nil
}

package scanner

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalSource reads the local filesystem.
type LocalSource struct{}

// Local returns the local filesystem source.
func Local() LocalSource { return LocalSource{} }

// Abs resolves path to an absolute path with symlinks evaluated, so a
// symlinked root such as /tmp -> /private/tmp is walked.
func (LocalSource) Abs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

func (LocalSource) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (LocalSource) Open(path string) (io.ReadCloser, error) { return os.Open(path) }

func (LocalSource) Walk(root string, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		var info fs.FileInfo
		if d != nil {
			if i, infoErr := d.Info(); infoErr == nil {
				info = i
			} else if err == nil {
				err = infoErr
			}
		}
		return fn(path, info, err)
	})
}

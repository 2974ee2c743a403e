//go:build windows

package ops

import (
	"fmt"
	"os"
	"path/filepath"
)

func deleteResolvedPath(parentPath, baseName string) error {
	realPath := filepath.Join(parentPath, baseName)
	info, err := os.Lstat(realPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %w", baseName, ErrNotFile)
	}
	return os.Remove(realPath)
}

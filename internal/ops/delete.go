// Package ops holds the actions taken on a finished duplicate report:
// deleting copies, exporting and importing reports, and printing them.
package ops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFile is returned when asked to delete a directory.
var ErrNotFile = errors.New("not a file")

// ErrLastCopy is returned when a delete would leave a group without a real
// file, only symlinks to the removed ones.
var ErrLastCopy = errors.New("no real copy would remain")

// CheckSurvivors returns ErrLastCopy when every member of group not marked
// in remove resolves to a regular file that is marked. Unlinking a symlink
// removes only the link, while unlinking a file removes what every symlink
// to it resolves to. Members that cannot be resolved are left to Delete.
func CheckSurvivors(group []string, remove map[string]bool) error {
	gone := make(map[string]bool)
	for _, p := range group {
		if !remove[p] {
			continue
		}
		info, err := os.Lstat(p)
		if err != nil || info.Mode()&fs.ModeSymlink != 0 {
			continue
		}
		if real, err := filepath.EvalSymlinks(p); err == nil {
			gone[real] = true
		}
	}

	for _, p := range group {
		if remove[p] {
			continue
		}
		real, err := filepath.EvalSymlinks(p)
		if err != nil || !gone[real] {
			return nil
		}
	}
	return ErrLastCopy
}

// Delete removes the file or symlink at path. rootPath constrains deletion
// to descendants of the scan root, and the parent directory must still
// resolve inside the root, so a symlinked directory cannot redirect the
// unlink elsewhere. Directories are never removed.
func Delete(path string, rootPath string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return fmt.Errorf("cannot resolve root %s: %w", rootPath, err)
	}
	if !within(absRoot, absPath) {
		return fmt.Errorf("refusing to delete %s: outside scan root %s", absPath, absRoot)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("cannot resolve root %s: %w", absRoot, err)
	}
	realParent, err := filepath.EvalSymlinks(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("cannot resolve parent of %s: %w", absPath, err)
	}
	if realParent != realRoot && !within(realRoot, realParent) {
		return fmt.Errorf("refusing to delete %s: parent resolves outside scan root %s", absPath, absRoot)
	}

	if err := deleteResolvedPath(realParent, filepath.Base(absPath)); err != nil {
		return fmt.Errorf("cannot delete %s: %w", absPath, err)
	}
	return nil
}

// DeleteAll deletes every path and returns the ones that were removed. The
// error joins every failure; a failure does not stop the remaining deletes.
func DeleteAll(paths []string, rootPath string) ([]string, error) {
	var (
		deleted []string
		errs    []error
	)
	for _, p := range paths {
		if err := Delete(p, rootPath); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, p)
	}
	return deleted, errors.Join(errs...)
}

// within reports whether path is strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

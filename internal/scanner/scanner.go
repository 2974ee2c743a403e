package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sadopc/godupe/internal/model"
)

// ErrInvalidRoot is returned when the scan root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid scan root")

// WalkFunc is called for every entry below the root. info is the entry's own
// metadata (symlinks are not followed). err is non-nil when the entry could
// not be read; returning fs.SkipDir for a directory skips its contents.
type WalkFunc func(path string, info fs.FileInfo, err error) error

// Source is a filesystem the scanner can walk and the hasher can read.
type Source interface {
	// Abs returns the canonical absolute form of path.
	Abs(path string) (string, error)
	// Stat returns metadata for path, following symlinks.
	Stat(path string) (fs.FileInfo, error)
	// Walk visits root and its descendants in lexical order.
	Walk(root string, fn WalkFunc) error
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)
}

// Options configures a scan.
type Options struct {
	// Filter, when set, must match a file's full path for it to be recorded.
	Filter Matcher
	// FollowSymlinks records symlinks that resolve to regular files,
	// using the target's size.
	FollowSymlinks bool
	// OnDiscover is called after each eligible file with the running count.
	OnDiscover func(n int)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{FollowSymlinks: true}
}

// Result is the outcome of a completed walk.
type Result struct {
	Root    string            // Canonical root the paths are under
	Buckets model.SizeBuckets // Eligible files keyed by size
	Total   int               // Number of eligible files
	Errors  int               // Entries that could not be read and were skipped
}

// Scan walks root on the calling goroutine and groups every eligible regular
// file by size. ctx is checked before each entry; on cancellation ctx.Err()
// is returned and no partial result is produced.
func Scan(ctx context.Context, src Source, root string, opts Options) (*Result, error) {
	if src == nil {
		src = Local()
	}
	absRoot, err := src.Abs(root)
	if err != nil {
		return nil, &os.PathError{Op: "scan", Path: root, Err: fmt.Errorf("%w: %w", ErrInvalidRoot, err)}
	}
	info, err := src.Stat(absRoot)
	if err != nil {
		return nil, &os.PathError{Op: "scan", Path: absRoot, Err: fmt.Errorf("%w: %w", ErrInvalidRoot, err)}
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "scan", Path: absRoot, Err: ErrInvalidRoot}
	}

	res := &Result{
		Root:    absRoot,
		Buckets: make(model.SizeBuckets),
	}

	walkErr := src.Walk(absRoot, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == absRoot {
				return err
			}
			res.Errors++
			if info != nil && info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		size, ok := eligibleSize(src, path, info, opts.FollowSymlinks)
		if !ok {
			return nil
		}
		if opts.Filter != nil && !opts.Filter.Match(path) {
			return nil
		}

		res.Buckets.Add(model.FileEntry{Path: path, Size: size})
		res.Total++
		if opts.OnDiscover != nil {
			opts.OnDiscover(res.Total)
		}
		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(walkErr, ctxErr) {
			return nil, walkErr
		}
		return nil, fmt.Errorf("walk %s: %w", absRoot, walkErr)
	}
	return res, nil
}

// eligibleSize reports the byte size of a regular file. Symlinks count only
// when followed and resolving to a regular file; everything else is skipped.
func eligibleSize(src Source, path string, info fs.FileInfo, follow bool) (uint64, bool) {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return uint64(info.Size()), true
	case mode&fs.ModeSymlink != 0 && follow:
		target, err := src.Stat(path)
		if err != nil || !target.Mode().IsRegular() {
			return 0, false
		}
		return uint64(target.Size()), true
	default:
		return 0, false
	}
}

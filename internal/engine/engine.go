// Package engine finds groups of byte-identical files below a directory.
//
// Files are bucketed by size during a single walk. Only buckets holding two
// or more files are hashed, by a fixed pool of goroutines that processes one
// bucket per round. Cancelling the context yields an empty result and no
// error; the first hashing failure aborts the whole run.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/sadopc/godupe/internal/digest"
	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/scanner"
)

// MaxWorkers caps the default hash pool size.
const MaxWorkers = 4

// DigestFunc computes the digest of one file. It must return ctx.Err() when
// it stops because ctx was cancelled.
type DigestFunc func(ctx context.Context, src scanner.Source, alg digest.Algorithm, path string) (string, error)

// Options configures FindDuplicates. The zero value scans the local
// filesystem with SHA-256 and no filter, and ignores symlinks. Use
// DefaultOptions to follow symlinks to regular files as the CLI does.
type Options struct {
	// Filter restricts which files are considered.
	Filter scanner.Matcher
	// Source is the filesystem to scan. Defaults to the local one.
	Source scanner.Source
	// Workers is the hash pool size. Defaults to min(GOMAXPROCS, MaxWorkers).
	Workers int
	// Algorithm defaults to digest.Default.
	Algorithm digest.Algorithm
	// FollowSymlinks records symlinks to regular files. False skips every
	// symlink.
	FollowSymlinks bool

	// OnDiscover is called during the walk with the running file count.
	OnDiscover func(n int)
	// OnTotal is called once after the walk with the number of eligible files.
	OnTotal func(n int)
	// OnSkipped is called once after the walk with the number of entries
	// that could not be read and were left out.
	OnSkipped func(n int)
	// OnCandidates is called once after the walk with the number of files
	// that share their size with another file and will be hashed.
	OnCandidates func(n int)
	// OnProgress is called after every hashed file with the cumulative count.
	// Calls are serialized and strictly increasing; the callback must not block.
	OnProgress func(n int)

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
	// Digest overrides the hash function, mainly for tests.
	Digest DigestFunc
}

// DefaultOptions returns the options the CLI starts from: scanner defaults
// plus an unset worker count and algorithm.
func DefaultOptions() Options {
	return Options{FollowSymlinks: scanner.DefaultOptions().FollowSymlinks}
}

func (o Options) withDefaults() Options {
	if o.Source == nil {
		o.Source = scanner.Local()
	}
	if o.Workers <= 0 {
		o.Workers = min(runtime.GOMAXPROCS(0), MaxWorkers)
	}
	if o.Algorithm == "" {
		o.Algorithm = digest.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Digest == nil {
		o.Digest = fileDigest
	}
	return o
}

func fileDigest(ctx context.Context, src scanner.Source, alg digest.Algorithm, path string) (string, error) {
	return digest.File(ctx, src, alg, path)
}

// FindDuplicates walks root and returns every group of two or more files
// with identical size and digest.
//
// A missing or non-directory root fails with scanner.ErrInvalidRoot. A file
// that cannot be read fails the run with *digest.HashError; no partial groups
// are returned. Cancellation of ctx returns (nil, nil). A context deadline is
// reported as an error.
func FindDuplicates(ctx context.Context, root string, opts Options) ([]model.DuplicateGroup, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	res, err := scanner.Scan(ctx, opts.Source, root, scanner.Options{
		Filter:         opts.Filter,
		FollowSymlinks: opts.FollowSymlinks,
		OnDiscover:     opts.OnDiscover,
	})
	if err != nil {
		if cancelled(ctx, err) {
			logger.Info("scan cancelled", slog.String("root", root))
			return nil, nil
		}
		return nil, err
	}
	if res.Errors > 0 {
		logger.Warn("unreadable entries skipped", slog.String("root", res.Root), slog.Int("count", res.Errors))
	}
	logger.Debug("walk finished", slog.String("root", res.Root), slog.Int("files", res.Total), slog.Int("sizes", len(res.Buckets)))

	if opts.OnTotal != nil {
		opts.OnTotal(res.Total)
	}
	if opts.OnSkipped != nil {
		opts.OnSkipped(res.Errors)
	}
	if opts.OnCandidates != nil {
		opts.OnCandidates(res.Buckets.Candidates())
	}

	groups, err := group(ctx, res.Buckets, opts)
	if err != nil {
		if cancelled(ctx, err) {
			logger.Info("scan cancelled", slog.String("root", res.Root))
			return nil, nil
		}
		logger.Error("duplicate search failed", slog.Any("error", err))
		return nil, err
	}
	return groups, nil
}

// group runs one pool round per size bucket with two or more members,
// largest size first.
func group(ctx context.Context, buckets model.SizeBuckets, opts Options) ([]model.DuplicateGroup, error) {
	sizes := make([]uint64, 0, len(buckets))
	for size, paths := range buckets {
		if len(paths) > 1 {
			sizes = append(sizes, size)
		}
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] > sizes[j] })

	p := newPool(ctx, opts.Workers, opts)
	defer p.shutdown()

	var out []model.DuplicateGroup
	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		paths := buckets[size]
		opts.Logger.Debug("hashing bucket", slog.Uint64("size", size), slog.Int("files", len(paths)))

		if err := p.round(paths); err != nil {
			return nil, err
		}
		found, err := p.groups(size)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.Canceled)
}

// Run is FindDuplicates plus the bookkeeping needed to present the result.
func Run(ctx context.Context, root string, opts Options) (*model.Report, error) {
	opts = opts.withDefaults()
	start := time.Now()

	var total, hashed, skipped int
	onTotal, onSkipped, onProgress := opts.OnTotal, opts.OnSkipped, opts.OnProgress
	opts.OnTotal = func(n int) {
		total = n
		if onTotal != nil {
			onTotal(n)
		}
	}
	opts.OnSkipped = func(n int) {
		skipped = n
		if onSkipped != nil {
			onSkipped(n)
		}
	}
	opts.OnProgress = func(n int) {
		hashed = n
		if onProgress != nil {
			onProgress(n)
		}
	}

	groups, err := FindDuplicates(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, nil
	}

	absRoot, err := opts.Source.Abs(root)
	if err != nil {
		absRoot = root
	}
	model.SortPaths(groups)
	return &model.Report{
		Root:       absRoot,
		Algorithm:  string(opts.Algorithm),
		TotalFiles: total,
		Hashed:     hashed,
		Skipped:    skipped,
		Duration:   time.Since(start),
		Groups:     groups,
	}, nil
}

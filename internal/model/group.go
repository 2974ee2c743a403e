package model

import "time"

// FileEntry is a discovered regular file.
type FileEntry struct {
	Path string // Full path as produced by the walk
	Size uint64 // Size in bytes, read once at discovery
}

// SizeBuckets groups discovered paths by exact byte size.
type SizeBuckets map[uint64][]string

// Add records a file under its size.
func (b SizeBuckets) Add(e FileEntry) {
	b[e.Size] = append(b[e.Size], e.Path)
}

// Candidates returns the number of files that share their size with at least
// one other file. Only these are ever hashed.
func (b SizeBuckets) Candidates() int {
	n := 0
	for _, paths := range b {
		if len(paths) > 1 {
			n += len(paths)
		}
	}
	return n
}

// DuplicateGroup is a set of two or more files with identical size and digest.
type DuplicateGroup struct {
	Digest string   `json:"digest"`
	Size   uint64   `json:"size"`
	Paths  []string `json:"paths"`
}

// Wasted returns the bytes that would be reclaimed by keeping a single copy.
func (g DuplicateGroup) Wasted() uint64 {
	if len(g.Paths) < 2 {
		return 0
	}
	return g.Size * uint64(len(g.Paths)-1)
}

// Remove drops path from the group and reports whether it was present.
func (g *DuplicateGroup) Remove(path string) bool {
	for i, p := range g.Paths {
		if p == path {
			g.Paths = append(g.Paths[:i:i], g.Paths[i+1:]...)
			return true
		}
	}
	return false
}

// Report is a finished scan: the groups plus the context they were found in.
type Report struct {
	Root       string           `json:"root"`
	Remote     string           `json:"remote,omitempty"` // user@host for SFTP scans
	Algorithm  string           `json:"algorithm"`
	TotalFiles int              `json:"total_files"`
	Hashed     int              `json:"hashed_files"`
	Skipped    int              `json:"skipped_entries,omitempty"` // unreadable entries left out of the walk
	Duration   time.Duration    `json:"duration_ns"`
	Groups     []DuplicateGroup `json:"groups"`
}

// DuplicateCount returns the number of files that are redundant copies.
func (r *Report) DuplicateCount() int {
	n := 0
	for _, g := range r.Groups {
		if len(g.Paths) > 1 {
			n += len(g.Paths) - 1
		}
	}
	return n
}

// WastedBytes sums Wasted over all groups.
func (r *Report) WastedBytes() uint64 {
	var total uint64
	for _, g := range r.Groups {
		total = saturatingAddUint64(total, g.Wasted())
	}
	return total
}

// RemovePath drops path from whichever group holds it. Groups left with
// fewer than two members are no longer duplicates and are removed.
func (r *Report) RemovePath(path string) bool {
	for i := range r.Groups {
		if !r.Groups[i].Remove(path) {
			continue
		}
		if len(r.Groups[i].Paths) < 2 {
			r.Groups = append(r.Groups[:i], r.Groups[i+1:]...)
		}
		return true
	}
	return false
}

func saturatingAddUint64(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}

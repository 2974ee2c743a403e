// Package digest computes content fingerprints of files.
package digest

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

// ChunkSize is the read size used when streaming file content.
const ChunkSize = 8192

// Algorithm names a cryptographic hash function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Algorithms lists the supported algorithms.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA512, BLAKE3}
}

// ParseAlgorithm resolves a user-supplied name. The empty string maps to Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return Default, nil
	case SHA256, SHA512, BLAKE3:
		return a, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (want sha256, sha512 or blake3)", name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// HashError reports a file whose content could not be digested.
type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("could not get hash of %q: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// Opener opens a file for reading.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// Reader streams r through the algorithm in ChunkSize reads and returns the
// hex digest. ctx is checked before every chunk; on cancellation ctx.Err() is
// returned unwrapped.
func Reader(ctx context.Context, alg Algorithm, r io.Reader) (string, error) {
	h := alg.New()
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File digests the file at path. Open and read failures are returned as
// *HashError; cancellation is returned as ctx.Err().
func File(ctx context.Context, opener Opener, alg Algorithm, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := opener.Open(path)
	if err != nil {
		return "", &HashError{Path: path, Err: err}
	}
	defer f.Close()

	sum, err := Reader(ctx, alg, f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}
		return "", &HashError{Path: path, Err: err}
	}
	return sum, nil
}

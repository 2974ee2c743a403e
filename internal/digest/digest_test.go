package digest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type osOpener struct{}

func (osOpener) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

// countingReader records how many Read calls were made.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{" SHA512 ", SHA512, false},
		{"Blake3", BLAKE3, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReader_KnownDigests(t *testing.T) {
	ctx := context.Background()

	got, err := Reader(ctx, SHA256, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"; got != want {
		t.Fatalf("sha256 of empty input = %s, want %s", got, want)
	}

	got, err = Reader(ctx, SHA256, strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Fatalf("sha256(abc) = %s, want %s", got, want)
	}
}

func TestReader_AlgorithmsDiffer(t *testing.T) {
	ctx := context.Background()
	seen := make(map[string]Algorithm)
	for _, alg := range Algorithms() {
		sum, err := Reader(ctx, alg, strings.NewReader("same content"))
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		if prev, ok := seen[sum]; ok {
			t.Fatalf("%s and %s produced the same digest", prev, alg)
		}
		seen[sum] = alg
	}
	if got := len(mustSum(t, SHA512, "x")); got != 128 {
		t.Fatalf("expected 128 hex chars for sha512, got %d", got)
	}
	if got := len(mustSum(t, BLAKE3, "x")); got != 64 {
		t.Fatalf("expected 64 hex chars for blake3, got %d", got)
	}
}

func TestReader_ReadsInChunks(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, ChunkSize*3+1)
	cr := &countingReader{r: bytes.NewReader(data)}

	if _, err := Reader(context.Background(), SHA256, cr); err != nil {
		t.Fatalf("Reader: %v", err)
	}
	// 4 data reads plus the one that observes EOF.
	if cr.reads != 5 {
		t.Fatalf("expected 5 reads, got %d", cr.reads)
	}
}

func TestReader_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cr := &countingReader{r: bytes.NewReader(make([]byte, ChunkSize*4))}
	_, err := Reader(ctx, SHA256, cr)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cr.reads != 0 {
		t.Fatalf("expected no reads after cancel, got %d", cr.reads)
	}
}

func TestFile_MatchesReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte("0123456789"), 5000)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	fromFile, err := File(ctx, osOpener{}, SHA256, path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	fromReader, err := Reader(ctx, SHA256, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if fromFile != fromReader {
		t.Fatalf("digest mismatch: file=%s reader=%s", fromFile, fromReader)
	}
}

func TestFile_MissingFileIsHashError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")

	_, err := File(context.Background(), osOpener{}, SHA256, path)
	var he *HashError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HashError, got %T: %v", err, err)
	}
	if he.Path != path {
		t.Fatalf("HashError.Path = %q, want %q", he.Path, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected error to unwrap to ErrNotExist, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("error message should name the path: %v", err)
	}
}

type readerOpener struct{ r io.Reader }

func (o readerOpener) Open(string) (io.ReadCloser, error) { return io.NopCloser(o.r), nil }

func TestFile_ReadFailureIsHashError(t *testing.T) {
	boom := errors.New("boom")
	_, err := File(context.Background(), readerOpener{failingReader{boom}}, SHA256, "/x")

	var he *HashError
	if !errors.As(err, &he) || !errors.Is(err, boom) {
		t.Fatalf("expected HashError wrapping boom, got %v", err)
	}
}

func TestFile_CancelIsNotHashError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := File(ctx, readerOpener{strings.NewReader("data")}, SHA256, "/x")
	var he *HashError
	if errors.As(err, &he) {
		t.Fatalf("cancellation should not be reported as HashError: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func mustSum(t *testing.T, alg Algorithm, s string) string {
	t.Helper()
	sum, err := Reader(context.Background(), alg, strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	return sum
}

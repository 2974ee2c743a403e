package ops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sadopc/godupe/internal/model"
)

// Export format, one positional JSON array:
// [1, 0, {"progname":"godupe","progver":"1.0","timestamp":1234567890},
//   {"root":"/path","algorithm":"sha256",...,"groups":[
//     {"digest":"ab12...","size":10,"paths":["/path/a","/path/b"]},
//     ...
//   ]}
// ]

const (
	formatMajor = 1
	formatMinor = 0
	progName    = "godupe"
)

type exportHeader struct {
	Progname  string `json:"progname"`
	Progver   string `json:"progver"`
	Timestamp int64  `json:"timestamp"`
}

// reportMeta is model.Report without the groups, which are streamed.
type reportMeta struct {
	Root       string        `json:"root"`
	Remote     string        `json:"remote,omitempty"`
	Algorithm  string        `json:"algorithm"`
	TotalFiles int           `json:"total_files"`
	Hashed     int           `json:"hashed_files"`
	Skipped    int           `json:"skipped_entries,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) Write(data []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(data)
	if err != nil {
		ew.err = err
	}
	return n, err
}

func (ew *errWriter) writeJSON(v any) {
	if ew.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		ew.err = err
		return
	}
	_, _ = ew.Write(data)
}

// ExportJSON writes report to path, or to stdout when path is "-".
// File targets are written to a temp file first and renamed on success, so
// a partial file is never left behind on error.
func ExportJSON(report *model.Report, path string, version string) (retErr error) {
	if report == nil {
		return errors.New("nothing to export")
	}
	if path == "-" {
		return exportToWriter(report, os.Stdout, version)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".godupe-export-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := exportToWriter(report, tmp, version); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// On Windows, Rename cannot replace an existing destination.
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cannot replace export file %s: %w", path, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return err
		}
	}
	return nil
}

func exportToWriter(report *model.Report, out io.Writer, version string) error {
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(ew, "[%d, %d, ", formatMajor, formatMinor)
	ew.writeJSON(exportHeader{
		Progname:  progName,
		Progver:   version,
		Timestamp: time.Now().Unix(),
	})
	ew.WriteString(",\n")

	meta, err := json.Marshal(reportMeta{
		Root:       report.Root,
		Remote:     report.Remote,
		Algorithm:  report.Algorithm,
		TotalFiles: report.TotalFiles,
		Hashed:     report.Hashed,
		Skipped:    report.Skipped,
		Duration:   report.Duration,
	})
	if err != nil {
		return err
	}
	// Reopen the object to append the streamed groups.
	_, _ = ew.Write(meta[:len(meta)-1])
	ew.WriteString(`,"groups":[`)
	for i, g := range report.Groups {
		if ew.err != nil {
			break
		}
		if i > 0 {
			ew.WriteString(",")
		}
		ew.WriteString("\n")
		ew.writeJSON(g)
	}
	ew.WriteString("\n]}\n]\n")

	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

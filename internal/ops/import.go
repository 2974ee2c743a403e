package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sadopc/godupe/internal/model"
)

// ImportJSON reads a report written by ExportJSON.
func ImportJSON(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open import file: %w", err)
	}

	// Top-level array: [major, minor, header, report]
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("invalid export format: expected at least 4 elements, got %d", len(raw))
	}

	var major int
	if err := json.Unmarshal(raw[0], &major); err != nil {
		return nil, fmt.Errorf("invalid format version: %w", err)
	}
	if major != formatMajor {
		return nil, fmt.Errorf("unsupported format version %d", major)
	}

	var header exportHeader
	if err := json.Unmarshal(raw[2], &header); err != nil {
		return nil, fmt.Errorf("cannot parse header: %w", err)
	}
	if header.Progname != progName {
		return nil, fmt.Errorf("not a %s export (written by %q)", progName, header.Progname)
	}

	var report model.Report
	if err := json.Unmarshal(raw[3], &report); err != nil {
		return nil, fmt.Errorf("cannot parse report: %w", err)
	}
	if report.Root == "" {
		return nil, fmt.Errorf("report has no root")
	}
	for i, g := range report.Groups {
		if len(g.Paths) < 2 {
			return nil, fmt.Errorf("group %d has %d paths, want at least 2", i, len(g.Paths))
		}
		if g.Digest == "" {
			return nil, fmt.Errorf("group %d has no digest", i)
		}
	}
	return &report, nil
}

// Package config loads godupe settings from an optional YAML file.
//
// Precedence is defaults, then the file, then flags set on the command line.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/godupe/internal/digest"
	"github.com/sadopc/godupe/internal/logging"
	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/scanner"
)

// DefaultFileName is read from the working directory when no file is given.
const DefaultFileName = "godupe.yml"

const (
	defAlgorithm  = string(digest.Default)
	defSort       = "wasted"
	defExportPath = "godupe-export.json"
	defLogLevel   = "info"
	defSSHPort    = 22
	defSSHTimeout = 15 * time.Second
)

// Config is the full set of tunables.
type Config struct {
	Filter         string        `yaml:"filter"`
	Glob           string        `yaml:"glob"`
	Algorithm      string        `yaml:"algorithm"`
	Workers        int           `yaml:"workers"`
	FollowSymlinks bool          `yaml:"follow_symlinks"`
	Timeout        time.Duration `yaml:"timeout"`
	Sort           string        `yaml:"sort"`
	ExportPath     string        `yaml:"export_path"`
	Log            LogConfig     `yaml:"log"`
	SSH            SSHConfig     `yaml:"ssh"`
}

// LogConfig controls the diagnostic log. An empty File disables logging.
type LogConfig struct {
	File      string `yaml:"file"`
	Level     string `yaml:"level"`
	JSON      bool   `yaml:"json"`
	AddSource bool   `yaml:"add_source"`
}

// SSHConfig controls remote scans.
type SSHConfig struct {
	Port    int           `yaml:"port"`
	Batch   bool          `yaml:"batch"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Algorithm:      defAlgorithm,
		FollowSymlinks: true,
		Sort:           defSort,
		ExportPath:     defExportPath,
		Log: LogConfig{
			Level: defLogLevel,
		},
		SSH: SSHConfig{
			Port:    defSSHPort,
			Timeout: defSSHTimeout,
		},
	}
}

// Load returns Default overlaid with the file at path. An empty path means
// DefaultFileName, which may be absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every field that has a restricted domain.
func (c *Config) Validate() error {
	if _, err := digest.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if _, err := ParseSort(c.Sort); err != nil {
		return err
	}
	if _, err := c.Matcher(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh port must be between 1 and 65535")
	}
	if c.SSH.Timeout < 0 {
		return fmt.Errorf("ssh timeout must not be negative")
	}
	return nil
}

// Matcher compiles Filter and Glob. It returns nil when neither is set.
func (c *Config) Matcher() (scanner.Matcher, error) {
	return scanner.NewMatcher(c.Filter, c.Glob)
}

// DigestAlgorithm returns the validated algorithm.
func (c *Config) DigestAlgorithm() digest.Algorithm {
	alg, err := digest.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return digest.Default
	}
	return alg
}

// SortConfig returns the initial group ordering.
func (c *Config) SortConfig() model.SortConfig {
	cfg, err := ParseSort(c.Sort)
	if err != nil {
		return model.DefaultSort()
	}
	return cfg
}

// ParseSort maps wasted, size, count and path to a descending sort (path
// sorts ascending). A "-asc" or "-desc" suffix overrides the order.
func ParseSort(s string) (model.SortConfig, error) {
	name, order, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")

	var cfg model.SortConfig
	switch name {
	case "", "wasted":
		cfg = model.SortConfig{Field: model.SortByWasted, Order: model.SortDesc}
	case "size":
		cfg = model.SortConfig{Field: model.SortBySize, Order: model.SortDesc}
	case "count":
		cfg = model.SortConfig{Field: model.SortByCount, Order: model.SortDesc}
	case "path":
		cfg = model.SortConfig{Field: model.SortByPath, Order: model.SortAsc}
	default:
		return model.SortConfig{}, fmt.Errorf("unknown sort %q (want wasted, size, count or path)", s)
	}

	switch order {
	case "":
	case "asc":
		cfg.Order = model.SortAsc
	case "desc":
		cfg.Order = model.SortDesc
	default:
		return model.SortConfig{}, fmt.Errorf("unknown sort order in %q", s)
	}
	return cfg, nil
}

// WriteTo writes c as YAML.
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

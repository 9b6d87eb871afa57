// Package config implements the run Configuration (§3) plus the ambient YAML
// loading the distilled spec omitted, mirroring the teacher's
// config.Configuration/NewAtPath pattern: struct-tag defaults applied via
// creasty/defaults, then overridden by whatever a YAML file on disk
// specifies.
package config

import (
	"os"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"
)

// Config holds every setting that is fixed for the duration of a run, per
// spec.md §3 plus the ambient additions of SPEC_FULL.md §3.
type Config struct {
	// Target is either a local directory path or an opaque remote location
	// handled by a Sink.
	Target string `yaml:"target"`

	// FilePrefix names the slices of this run; defaults to "backup".
	FilePrefix string `yaml:"file_prefix" default:"backup"`

	// MaxSliceMegabytes bounds a single slice; zero means unlimited.
	MaxSliceMegabytes int64 `yaml:"max_slice_megabytes"`

	// MediaNeedsChange requires Prompter confirmation before every slice
	// after the first, when Interactive is true.
	MediaNeedsChange bool `yaml:"media_needs_change"`

	// CompressFiles enables per-file compression before archiving.
	CompressFiles bool `yaml:"compress_files" default:"true"`

	// SliceScript is the optional external program notified at slice
	// lifecycle transitions.
	SliceScript string `yaml:"slice_script"`

	// Interactive distinguishes attended (prompting) from unattended
	// (batch) runs.
	Interactive bool `yaml:"interactive"`

	// ScratchDir stages compressed files and, for remote targets, finished
	// slices awaiting upload. Defaults to os.TempDir().
	ScratchDir string `yaml:"scratch_dir"`

	// LogLevel is the ambient logging verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level" default:"info"`

	// WriteLimitMiB optionally caps sustained tar-writer throughput, in
	// mebibytes per second. Zero means unlimited.
	WriteLimitMiB int `yaml:"write_limit_mib"`

	// Includes and Excludes are absolute or relative filesystem paths; the
	// loaders keep them as written, and the archiver resolves relative
	// entries against the working directory when a run starts.
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// New returns a Config with every `default` struct tag applied.
func New() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.WrapIf(err, "config: failed to apply defaults")
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	return c, nil
}

// Load reads a YAML configuration file at path, applying struct-tag defaults
// first so that a partial file only overrides what it mentions, matching the
// teacher's NewAtPath + yaml.Unmarshal sequencing in config/config.go.
func Load(path string) (*Config, error) {
	c, err := New()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIff(err, "config: failed to read '%s'", path)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.WrapIff(err, "config: failed to parse '%s'", path)
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	return c, nil
}

// Validate reports a ConfigError-class failure for settings that must be
// fixed before a run can start, per spec.md §7.
func (c *Config) Validate() error {
	if len(c.Includes) == 0 {
		return errors.New("config: at least one include path is required")
	}
	if c.Target == "" {
		return errors.New("config: target must be set")
	}
	if c.MaxSliceMegabytes < 0 {
		return errors.New("config: max_slice_megabytes must not be negative")
	}
	return nil
}

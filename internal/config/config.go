// Package config holds runtime configuration: defaults, an optional YAML
// file, PNGOPT_* environment variables and command-line flags, applied in
// that order of increasing precedence.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/rm-hull/png-optimizer/internal/manifest"
	"github.com/rm-hull/png-optimizer/internal/policy"
)

const ErrCodeInvalidConfig = "PNGOPT_INVALID_CONFIG"

const (
	DefaultConfigFile = ".png-optimizer.yaml"
	DefaultSchedule   = "30 4 * * *"
)

type Config struct {
	Targets []string

	// Policy parameters; both feed the manifest signature.
	Colors            int
	MinReductionBytes int64

	Manifest string
	Workers  int

	Write   bool // Absent means dry run: no file or manifest is modified.
	Force   bool // Ignore manifest skips and re-check every target.
	Verbose bool

	Schedule string // Cron spec used by the schedule command.
}

func Default() Config {
	return Config{
		Targets:           []string{"."},
		Colors:            policy.DefaultColors,
		MinReductionBytes: policy.DefaultMinReductionBytes,
		Manifest:          manifest.DefaultPath,
		Workers:           runtime.NumCPU(),
		Schedule:          DefaultSchedule,
	}
}

func (c *Config) Policy() policy.Policy {
	return policy.Policy{
		Colors:            c.Colors,
		MinReductionBytes: c.MinReductionBytes,
	}
}

func (c *Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if strings.TrimSpace(c.Manifest) == "" {
		return errors.New(ErrCodeInvalidConfig, "manifest path must not be empty")
	}
	if len(c.Targets) == 0 {
		return errors.New(ErrCodeInvalidConfig, "no targets given")
	}
	return nil
}

// Mode renders the write toggle the way the summary line reports it.
func (c *Config) Mode() string {
	if c.Write {
		return "WRITE"
	}
	return "DRY-RUN"
}

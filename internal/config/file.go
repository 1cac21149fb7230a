package config

import (
	"bytes"
	"io"
	"os"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// fileConfig mirrors the YAML document; pointers distinguish "absent" from
// zero values.
type fileConfig struct {
	Targets           []string `yaml:"targets"`
	Colors            *int     `yaml:"colors"`
	MinReductionBytes *int64   `yaml:"min_reduction_bytes"`
	Manifest          *string  `yaml:"manifest"`
	Workers           *int     `yaml:"workers"`
	Schedule          *string  `yaml:"schedule"`
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is only
// an error when required is set, i.e. the user named it explicitly.
func LoadFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to read config file").
			WithContext("path", path)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse config file").
			WithContext("path", path)
	}

	if len(fc.Targets) > 0 {
		cfg.Targets = fc.Targets
	}
	if fc.Colors != nil {
		cfg.Colors = *fc.Colors
	}
	if fc.MinReductionBytes != nil {
		cfg.MinReductionBytes = *fc.MinReductionBytes
	}
	if fc.Manifest != nil {
		cfg.Manifest = *fc.Manifest
	}
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.Schedule != nil {
		cfg.Schedule = *fc.Schedule
	}
	return nil
}

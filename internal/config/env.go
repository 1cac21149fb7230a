package config

import (
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
)

const EnvPrefix = "PNGOPT_"

// ApplyEnv overlays PNGOPT_* variables onto cfg. getenv is os.Getenv in
// production; a .env file has already been loaded into the environment by
// then.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvPrefix + "COLORS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("COLORS", v, err)
		}
		cfg.Colors = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "MIN_REDUCTION_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return invalidEnv("MIN_REDUCTION_BYTES", v, err)
		}
		cfg.MinReductionBytes = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("WORKERS", v, err)
		}
		cfg.Workers = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "MANIFEST")); v != "" {
		cfg.Manifest = v
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "SCHEDULE")); v != "" {
		cfg.Schedule = v
	}
	return nil
}

func invalidEnv(name, value string, err error) error {
	return errors.Wrap(err, ErrCodeInvalidConfig, "invalid environment variable "+EnvPrefix+name).
		WithContext("value", value)
}

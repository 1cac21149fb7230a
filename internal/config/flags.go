package config

import (
	"fmt"

	"github.com/rm-hull/png-optimizer/internal/policy"
	"github.com/spf13/pflag"
)

// Flags holds the values bound to a command's flag set. Only flags the user
// actually passed override the file and environment layers.
type Flags struct {
	fs         *pflag.FlagSet
	values     Config
	configFile string
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()

	fs.BoolVar(&f.values.Write, "write", false, "Apply changes in place. Without this flag, runs as dry-run")
	fs.IntVar(&f.values.Colors, "colors", d.Colors,
		fmt.Sprintf("Palette size for first-pass lossy conversion [%d-%d]", policy.MinColors, policy.MaxColors))
	fs.Int64Var(&f.values.MinReductionBytes, "min-reduction-bytes", d.MinReductionBytes,
		"Minimum bytes saved required to replace a file")
	fs.StringVar(&f.values.Manifest, "manifest", d.Manifest, "Manifest path")
	fs.BoolVar(&f.values.Force, "force", false, "Ignore manifest skip and re-check all target files")
	fs.IntVar(&f.values.Workers, "workers", d.Workers, "Number of files processed concurrently")
	fs.BoolVarP(&f.values.Verbose, "verbose", "v", false, "Log version, user and PNGOPT_* environment at start")
	fs.StringVar(&f.configFile, "config", DefaultConfigFile, "Optional YAML config file")
	return f
}

// RegisterSchedule adds the cron flag used by the schedule command.
func (f *Flags) RegisterSchedule() {
	f.fs.StringVar(&f.values.Schedule, "cron", DefaultSchedule, "Cron schedule for repeated runs")
}

// Resolve layers defaults, config file, environment and explicitly set
// flags, takes targets from args when any are given, and validates.
func (f *Flags) Resolve(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if err := LoadFile(f.configFile, f.fs.Changed("config"), &cfg); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	if f.fs.Changed("colors") {
		cfg.Colors = f.values.Colors
	}
	if f.fs.Changed("min-reduction-bytes") {
		cfg.MinReductionBytes = f.values.MinReductionBytes
	}
	if f.fs.Changed("manifest") {
		cfg.Manifest = f.values.Manifest
	}
	if f.fs.Changed("workers") {
		cfg.Workers = f.values.Workers
	}
	if f.fs.Lookup("cron") != nil && f.fs.Changed("cron") {
		cfg.Schedule = f.values.Schedule
	}
	cfg.Write = f.values.Write
	cfg.Force = f.values.Force
	cfg.Verbose = f.values.Verbose

	if len(args) > 0 {
		cfg.Targets = args
	}
	return cfg, cfg.Validate()
}

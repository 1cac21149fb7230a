package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rm-hull/png-optimizer/internal"
	"github.com/rm-hull/png-optimizer/internal/batch"
	"github.com/rm-hull/png-optimizer/internal/config"
)

// Optimize runs a single batch over the configured targets and returns the
// process exit code: 0 when every file was handled, 2 when any file errored.
func Optimize(ctx context.Context, cfg config.Config, out io.Writer) (int, error) {
	if cfg.Verbose {
		internal.ShowVersion()
		internal.UserInfo(cfg.Targets)
		internal.EnvironmentVars()
	}

	processor, err := batch.NewProcessor(cfg, out)
	if err != nil {
		return 1, fmt.Errorf("failed to create processor: %w", err)
	}

	stats, err := processor.Run(ctx)
	if err != nil {
		return 2, fmt.Errorf("failed to complete batch run: %w", err)
	}
	return stats.ExitCode(), nil
}

package cmd

import (
	"context"
	"io"
	"log"

	"github.com/rm-hull/png-optimizer/internal"
	"github.com/rm-hull/png-optimizer/internal/config"
)

// Schedule repeats the batch run on the configured cron schedule until ctx
// is cancelled. A run still in progress when the next one is due is not
// overlapped.
func Schedule(ctx context.Context, cfg config.Config, out io.Writer) error {
	if cfg.Verbose {
		internal.ShowVersion()
		internal.UserInfo(cfg.Targets)
		internal.EnvironmentVars()
	}

	c, err := internal.StartCron(cfg.Schedule, func() {
		code, err := Optimize(ctx, cfg, out)
		if err != nil {
			log.Printf("Scheduled run failed: %v", err)
			return
		}
		if code != 0 {
			log.Printf("Scheduled run finished with errors (exit code %d)", code)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("Stopping scheduler, waiting for running batch to finish")
	<-c.Stop().Done()
	return nil
}

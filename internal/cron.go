package internal

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// StartCron registers job on schedule and starts the scheduler. Runs that
// would overlap a previous, still running invocation are skipped.
func StartCron(schedule string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	log.Printf("Starting CRON job to optimise PNG files (schedule=%s)", schedule)
	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}

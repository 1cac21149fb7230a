package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/earthboundkid/versioninfo/v2"
	"github.com/joho/godotenv"
	"github.com/rm-hull/png-optimizer/cmd"
	"github.com/rm-hull/png-optimizer/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:  "png-optimizer",
		Long: `Safe batch PNG optimizer: re-encodes PNG files in place only when the result is meaningfully smaller`,
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize [targets...] [--write] [--colors <n>] [--min-reduction-bytes <n>] [--manifest <path>] [--force]",
		Short: "Optimize PNG files under the given targets (dry run unless --write)",
	}
	optimizeFlags := config.RegisterFlags(optimizeCmd.Flags())
	optimizeCmd.Run = func(c *cobra.Command, args []string) {
		cfg, err := optimizeFlags.Resolve(args, os.Getenv)
		if err != nil {
			log.Printf("Invalid configuration: %v", err)
			exit(stop, 1)
		}
		code, err := cmd.Optimize(ctx, cfg, c.OutOrStdout())
		if err != nil {
			log.Println(err)
		}
		exit(stop, code)
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule [targets...] [--cron <spec>] [--write]",
		Short: "Run the optimizer repeatedly on a cron schedule",
	}
	scheduleFlags := config.RegisterFlags(scheduleCmd.Flags())
	scheduleFlags.RegisterSchedule()
	scheduleCmd.Run = func(c *cobra.Command, args []string) {
		cfg, err := scheduleFlags.Resolve(args, os.Getenv)
		if err != nil {
			log.Printf("Invalid configuration: %v", err)
			exit(stop, 1)
		}
		if err := cmd.Schedule(ctx, cfg, c.OutOrStdout()); err != nil {
			log.Println(err)
			exit(stop, 1)
		}
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(c *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(c.OutOrStdout(), versioninfo.Short())
		},
	}

	rootCmd.AddCommand(optimizeCmd, scheduleCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// exit releases the signal handler before leaving, since deferred calls do
// not run under os.Exit.
func exit(stop context.CancelFunc, code int) {
	stop()
	os.Exit(code)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/statgo/stat/internal/watch"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeatedly sample and gather, merging rounds into one growing graph",
	Long: `watch runs WatchRound on a fixed interval until interrupted,
accumulating every round's reduced graph into one 3D call-tree graph
instead of emitting a fresh one each time (spec scenario: unattended
long-running jobs).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		interval := watchInterval
		if interval == 0 {
			interval = time.Duration(cfg.Timeouts.WatchIntervalSeconds) * time.Second
		}
		sched := watch.New(interval, fe.WatchRound, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		sched.Stop()
		rounds, lastPath, lastErr := sched.Status()
		fmt.Printf("stopped after %d round(s)\n", rounds)
		if lastErr != nil {
			return lastErr
		}
		fmt.Println(lastPath)
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Gather interval (defaults to timeouts.watch_interval_seconds)")
	rootCmd.AddCommand(watchCmd)
}

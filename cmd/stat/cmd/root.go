package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/statgo/stat/internal/control"
	"github.com/statgo/stat/internal/repository"
	"github.com/statgo/stat/internal/storage"
	"github.com/statgo/stat/internal/topology"
	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/config"
	"github.com/statgo/stat/pkg/telemetry"
	"github.com/statgo/stat/pkg/utils"
)

var (
	cfgPath string
	verbose bool
	logger  utils.Logger

	cfg           *config.Config
	plan          *topology.Plan
	fe            *control.Frontend
	telemetryStop telemetry.ShutdownFunc
)

// NewTransport builds the overlay-network transport cmd/stat drives a
// gather round through. This repository's only Transport implementation,
// internal/transport.InMemoryTransport, is a reference used by this
// repo's own tests; a deployment links a concrete production transport in
// by replacing this var, the same seam cmd/statd uses for its daemon-side
// collaborators.
var NewTransport = func(cfg *config.Config, plan *topology.Plan) (transport.Transport, error) {
	return nil, fmt.Errorf("cmd/stat: no production transport.Transport is linked into this build")
}

var rootCmd = &cobra.Command{
	Use:   "stat",
	Short: "Drive gather rounds against a tree of statd daemons",
	Long: `stat attaches to a running job's overlay network and drives one
gather round at a time: sample the target job's stacks, gather and merge
the per-daemon graphs, and reorder the result back into MPI rank order.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		switch cmd.Name() {
		case "version", "help":
			return nil
		}
		return setup()
	},
}

// setup loads configuration, plans the topology, and wires a Frontend.
// Shared by every subcommand except version, which has nothing to attach
// to.
func setup() error {
	stop, err := telemetry.Init(context.Background())
	if err != nil {
		logger.Warn("stat: telemetry disabled: %v", err)
	}
	telemetryStop = stop

	loaded, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg = loaded

	root, err := topology.ParseFile(cfg.Topology.FilePath)
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}
	p, err := topology.Plan(root)
	if err != nil {
		return fmt.Errorf("planning topology: %w", err)
	}
	plan = p

	tr, err := NewTransport(cfg, plan)
	if err != nil {
		return err
	}

	var major, minor, revision int
	fmt.Sscanf(cfg.Frontend.Version, "%d.%d.%d", &major, &minor, &revision)

	fcfg := control.Config{
		Version:         control.Version{Major: major, Minor: minor, Revision: revision},
		ExpectedDaemons: len(plan.Order),
		AckTimeout:      time.Duration(cfg.Timeouts.AckSeconds) * time.Second,
		GraphTimeout:    time.Duration(cfg.Timeouts.GraphSeconds) * time.Second,
		OutDir:          cfg.Frontend.OutDir,
		Prefix:          cfg.Frontend.Prefix,
		CompressArchive: cfg.Storage.Compress,
	}
	fe = control.New(fcfg, tr, plan, logger)

	if repo, _, err := repository.NewGatherRoundRepository(&cfg.Database); err != nil {
		logger.Warn("stat: round history disabled: %v", err)
	} else {
		fe.SetHistory(repo)
	}
	if archiver, err := storage.NewStorage(&cfg.Storage); err != nil {
		logger.Warn("stat: output archival disabled: %v", err)
	} else {
		fe.SetArchive(archiver)
	}

	return nil
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	err := rootCmd.Execute()
	if telemetryStop != nil {
		_ = telemetryStop(context.Background())
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Attach and run one gather round
  ` + binName + ` attach
  ` + binName + ` gather

  # Re-export the last sampled graph without re-sampling
  ` + binName + ` gather-last

  # Pause target execution, then resume it
  ` + binName + ` pause
  ` + binName + ` resume

  # Watch mode: repeated gather rounds merged into one growing graph
  ` + binName + ` watch --interval 30s`
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}

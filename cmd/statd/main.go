// Command statd is the daemon binary: one instance runs per overlay-tree
// leaf, sampling a fixed set of local target threads and answering the
// front-end's sample/gather requests for them (spec §4.8).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/statgo/stat/internal/procctl"
	"github.com/statgo/stat/internal/resourcemgr"
	"github.com/statgo/stat/internal/sampler"
	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/config"
	"github.com/statgo/stat/pkg/telemetry"
	"github.com/statgo/stat/pkg/utils"
)

var (
	configPath = flag.String("c", "", "Path to configuration file")
	localRank  = flag.Int("rank", 0, "This daemon's lowest-owned global MPI rank")
	numRanks   = flag.Int("ranks", 1, "Number of local ranks this daemon owns")
	version    = flag.Bool("v", false, "Print version and exit")
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// NewController constructs this daemon's process-control collaborator
// (internal/procctl.Controller). The interface is defined to spec §6 but
// this repository implements only the front-end/daemon control flow that
// consumes it, not a concrete ptrace/MRNet backend, so a deployment links
// one in by replacing this var.
var NewController = func(cfg *config.Config) (procctl.Controller, error) {
	return nil, fmt.Errorf("cmd/statd: no procctl.Controller is linked into this build")
}

// NewResourceManager constructs this daemon's resource-manager
// collaborator (internal/resourcemgr.Manager), used to discover the local
// process table handed to it by the job launcher. Same seam as
// NewController: consumed-only per spec §1.
var NewResourceManager = func(cfg *config.Config) (resourcemgr.Manager, error) {
	return nil, fmt.Errorf("cmd/statd: no resourcemgr.Manager is linked into this build")
}

// NewRequestStream opens this daemon's half of the overlay-network
// transport: the channel pair a sampler.Daemon reads requests from and
// writes responses to. internal/transport.InMemoryTransport never reaches
// this binary (it is a test-only reference, spec SPEC_FULL.md §4.9), so a
// deployment links a production transport's daemon-side listener in here.
var NewRequestStream = func(cfg *config.Config) (<-chan sampler.Request, chan<- sampler.Response, error) {
	return nil, nil, fmt.Errorf("cmd/statd: no production transport listener is linked into this build")
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("statd version %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	logger := utils.NewDefaultLogger(utils.LevelInfo, os.Stdout)
	logger.Info("starting statd...")

	telemetryStop, err := telemetry.Init(context.Background())
	if err != nil {
		logger.Warn("telemetry disabled: %v", err)
	}
	defer telemetryStop(context.Background())

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctl, err := NewController(cfg)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	mgr, err := NewResourceManager(cfg)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := mgr.GetProcessTable(ctx)
	if err != nil {
		logger.Error("failed to fetch process table: %v", err)
		os.Exit(1)
	}
	threads := make([]procctl.ProcThread, 0, len(table))
	for _, entry := range table {
		threads = append(threads, procctl.ProcThread{Host: entry.Host, PID: entry.PID})
	}
	logger.Info("tracking %d target process(es) for local ranks [%d, %d)", len(threads), *localRank, *localRank+*numRanks)

	in, out, err := NewRequestStream(cfg)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	s := sampler.New(ctl, logger)
	budget := sampler.RetryBudget{
		MaxRetries: cfg.Sample.MaxRetries,
		Delay:      time.Duration(cfg.Sample.RetryDelayMs) * time.Millisecond,
	}
	d := sampler.NewDaemon(s, threads, *localRank, *numRanks, transport.Flags(0), budget, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, detaching...")
		if err := mgr.Detach(ctx); err != nil {
			logger.Warn("detach: %v", err)
		}
		cancel()
	}()

	if err := d.Serve(ctx, in, out); err != nil && ctx.Err() == nil {
		logger.Error("daemon stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("statd stopped")
}

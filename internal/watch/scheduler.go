// Package watch implements unattended periodic re-sampling (spec.md §8
// scenario 6's "stat watch"), reusing the teacher's scheduler Start/Stop/
// stopCh/WaitGroup idiom (internal/scheduler.Scheduler) scaled down to a
// single ticker driving one gather round at a time.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/statgo/stat/pkg/utils"
)

// GatherFunc performs one accumulating gather round and returns the path of
// the file written for that round (only the final round's path matters for
// watch mode, but every round's path is reported for progress logging).
type GatherFunc func(ctx context.Context) (string, error)

// Scheduler drives GatherFunc on a fixed interval until Stop is called.
type Scheduler struct {
	interval time.Duration
	gather   GatherFunc
	logger   utils.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	lastPath string
	lastErr  error
	rounds   int
}

// New creates a Scheduler that calls gather every interval.
func New(interval time.Duration, gather GatherFunc, logger utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Scheduler{interval: interval, gather: gather, logger: logger}
}

// Start begins the periodic gather loop. Starting an already-running
// Scheduler logs a warning and returns nil.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("watch: start called while already running")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop halts the gather loop and waits for the in-flight round to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			path, err := s.gather(ctx)
			s.mu.Lock()
			s.rounds++
			s.lastPath, s.lastErr = path, err
			s.mu.Unlock()
			if err != nil {
				s.logger.Warn("watch: gather round failed: %v", err)
				continue
			}
			s.logger.Info("watch: gather round %d wrote %s", s.rounds, path)
		}
	}
}

// Status reports the outcome of the most recent round.
func (s *Scheduler) Status() (rounds int, lastPath string, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds, s.lastPath, s.lastErr
}

package sampler

import (
	"context"
	"sync"

	"github.com/statgo/stat/internal/procctl"
	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/errors"
	"github.com/statgo/stat/pkg/graph"
	"github.com/statgo/stat/pkg/utils"
)

// Request is one tagged message a Daemon answers, the daemon-side half of
// transport.Transport's Broadcast/AwaitAck/AwaitGraph contract.
type Request struct {
	Tag transport.PayloadTag
}

// Response is a Daemon's answer to a Request: Ack for TagVersion/TagSample,
// Graph for TagGather.
type Response struct {
	Ack   int64
	Graph transport.GraphPayload
	Err   error
}

// Daemon answers sample/gather requests for one process's set of target
// threads, reusing the most recent SampleProcess result across gather
// calls the way a real daemon holds its graph between a sample and the
// next gather (spec §4.3/§4.8: "starts a sampler.Daemon ... blocking on
// the transport's request stream").
type Daemon struct {
	sampler       *Sampler
	threads       []procctl.ProcThread
	localRank     int
	numLocalRanks int
	flags         transport.Flags
	budget        RetryBudget
	logger        utils.Logger

	mu        sync.Mutex
	lastGraph *graph.Graph
}

// NewDaemon creates a Daemon bound to a fixed set of threads. threads is
// static for the daemon's lifetime: process discovery/enumeration is the
// resource manager's job (resourcemgr.Manager), not this package's.
func NewDaemon(s *Sampler, threads []procctl.ProcThread, localRank, numLocalRanks int, flags transport.Flags, budget RetryBudget, logger utils.Logger) *Daemon {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Daemon{
		sampler:       s,
		threads:       threads,
		localRank:     localRank,
		numLocalRanks: numLocalRanks,
		flags:         flags,
		budget:        budget,
		logger:        logger,
	}
}

// Serve reads requests off in and writes one Response per Request to out,
// until ctx is canceled or in is closed. It never closes out.
func (d *Daemon) Serve(ctx context.Context, in <-chan Request, out chan<- Response) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- d.handle(ctx, req):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (d *Daemon) handle(ctx context.Context, req Request) Response {
	switch req.Tag {
	case transport.TagVersion:
		return Response{Ack: 0}

	case transport.TagSample:
		g, err := d.sampler.SampleProcess(ctx, d.threads, d.localRank, d.numLocalRanks, d.flags, d.budget, nil)
		if err != nil {
			d.logger.Warn("sampler: daemon sample failed: %v", err)
			return Response{Err: err}
		}
		d.mu.Lock()
		d.lastGraph = g
		d.mu.Unlock()
		return Response{Ack: 0}

	case transport.TagGather:
		d.mu.Lock()
		g := d.lastGraph
		d.mu.Unlock()
		if g == nil {
			return Response{Err: errors.New(errors.CodeFatalInternal, "sampler: gather requested before any sample")}
		}
		buf, err := graph.Serialize(g)
		if err != nil {
			return Response{Err: errors.Wrap(errors.CodeFatalInternal, "serializing sampled graph", err)}
		}
		return Response{Graph: transport.GraphPayload{
			GraphBytes:            buf,
			ChildWidthWords:       bitvector.WordsForRanks(d.numLocalRanks),
			ChildLowestGlobalRank: d.localRank,
		}}

	default:
		return Response{Err: errors.New(errors.CodeFatalInternal, "sampler: daemon got unknown tag")}
	}
}

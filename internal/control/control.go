// Package control implements the front-end state machine (spec §4.7): a
// gather round moves Idle -> Broadcasting(sample) -> AwaitingAck ->
// Broadcasting(gather) -> AwaitingGraph -> Reordering -> Emitted -> Idle,
// with every broadcast non-blocking and every wait carrying a timeout.
package control

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/statgo/stat/internal/reorder"
	"github.com/statgo/stat/internal/repository"
	"github.com/statgo/stat/internal/storage"
	"github.com/statgo/stat/internal/topology"
	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/compression"
	"github.com/statgo/stat/pkg/errors"
	"github.com/statgo/stat/pkg/graph"
	"github.com/statgo/stat/pkg/parallel"
	"github.com/statgo/stat/pkg/utils"
	"github.com/statgo/stat/pkg/writer"
)

// State is one position in the gather-round state machine.
type State int

const (
	StateIdle State = iota
	StateBroadcastingSample
	StateAwaitingAck
	StateBroadcastingGather
	StateAwaitingGraph
	StateReordering
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBroadcastingSample:
		return "Broadcasting(sample)"
	case StateAwaitingAck:
		return "AwaitingAck"
	case StateBroadcastingGather:
		return "Broadcasting(gather)"
	case StateAwaitingGraph:
		return "AwaitingGraph"
	case StateReordering:
		return "Reordering"
	case StateEmitted:
		return "Emitted"
	default:
		return "Unknown"
	}
}

// Version is the front-end's (major, minor, revision) tuple, compared
// against daemons/filters via the version-mismatch sum filter (spec §4.7).
type Version struct {
	Major, Minor, Revision int
}

// Config bundles the knobs a Frontend needs beyond its collaborators.
type Config struct {
	Version         Version
	ExpectedDaemons int
	AckTimeout      time.Duration
	GraphTimeout    time.Duration
	OutDir          string
	Prefix          string
	CompressArchive bool
}

// DefaultConfig matches spec §5's "default tens of seconds" timeout
// guidance.
func DefaultConfig() Config {
	return Config{
		AckTimeout:   30 * time.Second,
		GraphTimeout: 30 * time.Second,
		OutDir:       ".",
		Prefix:       "stat",
	}
}

// Frontend is the single-threaded cooperative state machine driving one
// overlay tree (spec §5: "single-threaded cooperative over the overlay
// stream"). All exported operations are safe to call from one goroutine;
// concurrent calls are serialized by mu but the model assumes one caller.
type Frontend struct {
	mu sync.Mutex

	cfg       Config
	transport transport.Transport
	plan      *topology.Plan
	logger    utils.Logger

	state    State
	paused   bool
	attached bool

	sampleSeq int
	accum     *graph.Graph // nil unless a watch-mode (3D) accumulation is in progress

	lastResponding int
	lastExpected   int

	history repository.GatherRoundRepository // optional, C10
	archive storage.Storage                  // optional, C11
	bgPool  *parallel.WorkerPool[func(context.Context) error, struct{}]
}

// New creates a Frontend bound to a transport and a topology plan.
func New(cfg Config, t transport.Transport, plan *topology.Plan, logger utils.Logger) *Frontend {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Frontend{cfg: cfg, transport: t, plan: plan, logger: logger, state: StateIdle}
}

// SetHistory attaches a round-history repository (C10). Every round after
// Emitted is recorded there in the background; nil (the default) disables
// recording.
func (f *Frontend) SetHistory(repo repository.GatherRoundRepository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = repo
}

// SetArchive attaches an output archiver (C11). Every round's DOT file is
// uploaded there in the background after Emitted; nil (the default)
// disables archival.
func (f *Frontend) SetArchive(a storage.Storage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archive = a
}

func (f *Frontend) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Attach marks the front-end as attached to its daemons. Idempotent: a
// second Attach while already attached logs a warning, not an error
// (spec §4.7).
func (f *Frontend) Attach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached {
		f.logger.Warn("control: attach called while already attached")
		return nil
	}
	if err := f.checkVersion(ctx); err != nil {
		return err
	}
	f.attached = true
	return nil
}

// Detach is the inverse of Attach, equally idempotent.
func (f *Frontend) Detach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.attached {
		f.logger.Warn("control: detach called while already detached")
		return nil
	}
	f.attached = false
	return nil
}

// Pause is idempotent: pausing an already-paused front-end warns.
func (f *Frontend) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		f.logger.Warn("control: pause called while already paused")
		return nil
	}
	f.paused = true
	return nil
}

// Resume is idempotent: resuming an already-running front-end warns.
func (f *Frontend) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		f.logger.Warn("control: resume called while not paused")
		return nil
	}
	f.paused = false
	return nil
}

// checkVersion broadcasts the version tag and aborts setup on any mismatch
// (spec §4.7, §7 VersionMismatch — fatal to setup, daemons are detached).
func (f *Frontend) checkVersion(ctx context.Context) error {
	tracer := otel.Tracer("stat")
	ctx, span := tracer.Start(ctx, "stat.version.check")
	defer span.End()

	body := []byte(fmt.Sprintf("%d.%d.%d", f.cfg.Version.Major, f.cfg.Version.Minor, f.cfg.Version.Revision))
	token, err := f.transport.Broadcast(ctx, transport.TagVersion, body)
	if err != nil {
		return errors.Wrap(errors.CodeTransportIO, "broadcasting version check", err)
	}
	sum, err := f.transport.AwaitAck(ctx, token, f.cfg.AckTimeout)
	if err != nil {
		return errors.Wrap(errors.CodeTransportIO, "awaiting version check ack", err)
	}
	if sum.Sum != 0 {
		f.attached = false
		return errors.New(errors.CodeVersionMismatch, "one or more daemons/filters reported a differing version")
	}
	return nil
}

func (f *Frontend) transition(to State) {
	f.logger.Debug("control: %s -> %s", f.state, to)
	f.state = to
}

// Sample broadcasts a sample request and waits for the ack sum, advancing
// Idle -> Broadcasting(sample) -> AwaitingAck -> Idle. It does not gather
// the resulting graph; call Gather (or GatherLast) for that.
func (f *Frontend) Sample(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return errors.New(errors.CodeFatalInternal, "control: sample called while paused")
	}

	tracer := otel.Tracer("stat")
	ctx, span := tracer.Start(ctx, "stat.broadcast.sample")
	defer span.End()

	f.transition(StateBroadcastingSample)
	token, err := f.transport.Broadcast(ctx, transport.TagSample, nil)
	if err != nil {
		f.transition(StateIdle)
		return errors.Wrap(errors.CodeTransportIO, "broadcasting sample", err)
	}

	f.transition(StateAwaitingAck)
	sum, err := f.transport.AwaitAck(ctx, token, f.cfg.AckTimeout)
	f.transition(StateIdle)
	if err != nil {
		return errors.Wrap(errors.CodeTransportIO, "awaiting sample ack", err)
	}
	f.lastResponding, f.lastExpected = sum.RespondingCount, sum.ExpectedCount
	if sum.RespondingCount < sum.ExpectedCount {
		f.logger.Warn("control: partial response to sample: %d/%d daemons", sum.RespondingCount, sum.ExpectedCount)
	}
	return nil
}

// Gather runs a full round: Sample, then Broadcasting(gather) ->
// AwaitingGraph -> Reordering -> Emitted -> Idle. It returns the path of
// the exported DOT file.
func (f *Frontend) Gather(ctx context.Context) (string, error) {
	if err := f.Sample(ctx); err != nil {
		return "", err
	}
	return f.gatherGraph(ctx, false)
}

// GatherLast re-gathers the most recently sampled daemon graphs without
// re-broadcasting a sample (spec's "gather_last" operation).
func (f *Frontend) GatherLast(ctx context.Context) (string, error) {
	return f.gatherGraph(ctx, false)
}

// WatchRound runs one round of spec §8 scenario 6's 3D gather: Sample, then
// merge this round's reduced graph into the accumulating 3D graph instead
// of emitting a fresh one each time. Intended to be driven by
// internal/watch.Scheduler on a fixed interval.
func (f *Frontend) WatchRound(ctx context.Context) (string, error) {
	if err := f.Sample(ctx); err != nil {
		return "", err
	}
	return f.gatherGraph(ctx, true)
}

func (f *Frontend) gatherGraph(ctx context.Context, accumulate bool) (string, error) {
	started := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return "", errors.New(errors.CodeFatalInternal, "control: gather called while paused")
	}

	tracer := otel.Tracer("stat")
	ctx, span := tracer.Start(ctx, "stat.broadcast.gather")
	f.transition(StateBroadcastingGather)
	token, err := f.transport.Broadcast(ctx, transport.TagGather, nil)
	span.End()
	if err != nil {
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeTransportIO, "broadcasting gather", err)
	}

	ctx, span = tracer.Start(ctx, "stat.await.graph")
	f.transition(StateAwaitingGraph)
	// A subtree with at least one responding daemon still produces a
	// graph (partial-response tolerance, spec §7): only a wholesale
	// failure to reach any daemon surfaces an error here.
	payload, err := f.transport.AwaitGraph(ctx, token, f.cfg.GraphTimeout)
	span.End()
	if err != nil {
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeTransportIO, "awaiting gather graph", err)
	}

	_, span = tracer.Start(ctx, "stat.reorder")
	f.transition(StateReordering)
	reduced, err := graph.Deserialize(payload.GraphBytes, graph.BasicBitvectorDecoder())
	if err != nil {
		span.End()
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeFatalInternal, "deserializing reduced graph", err)
	}
	reordered, err := reorder.Reorder(reduced, f.plan)
	span.End()
	if err != nil {
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeFatalInternal, "reordering graph", err)
	}

	if accumulate {
		if f.accum == nil {
			f.accum = reordered
		} else if err := graph.Merge(f.accum, reordered); err != nil {
			f.transition(StateIdle)
			return "", errors.Wrap(errors.CodeFatalInternal, "accumulating 3D graph", err)
		}
		reordered = f.accum
	}

	colors, err := graph.ColorByLeadingEdge(reordered)
	if err != nil {
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeFatalInternal, "coloring graph", err)
	}
	f.sampleSeq++
	path, err := graph.ExportDotFile(reordered, colors, f.cfg.OutDir, f.cfg.Prefix, f.sampleSeq-1, accumulate)
	f.transition(StateEmitted)
	if err != nil {
		f.transition(StateIdle)
		return "", errors.Wrap(errors.CodeFatalInternal, "exporting dot file", err)
	}

	kind := "2D"
	if accumulate {
		kind = "3D"
	}
	f.dispatchBackground(started, kind, f.lastResponding, graphWidthWords(reordered), path)

	f.transition(StateIdle)
	return path, nil
}

// dispatchBackground records this round in the history repository and
// uploads its output to the archive, both off the event loop (spec §5: a
// slow upload or DB write must not stall the next round's
// Idle -> Broadcasting(sample) transition). It is a no-op unless SetHistory
// or SetArchive was called. Uses a single-worker pool so rounds are
// recorded in order without serializing on the front-end's own mutex.
func (f *Frontend) dispatchBackground(started time.Time, kind string, respondingCount, widthWords int, path string) {
	if f.history == nil && f.archive == nil {
		return
	}
	if f.bgPool == nil {
		f.bgPool = parallel.NewWorkerPool[func(context.Context) error, struct{}](parallel.DefaultPoolConfig().WithWorkers(1))
	}
	pool := f.bgPool
	history := f.history
	archive := f.archive
	version := fmt.Sprintf("%d.%d.%d", f.cfg.Version.Major, f.cfg.Version.Minor, f.cfg.Version.Revision)
	logger := f.logger

	var tasks []func(context.Context) error
	if history != nil {
		tasks = append(tasks, func(ctx context.Context) error {
			round := &repository.GatherRound{
				StartedAt:   started,
				DaemonCount: f.cfg.ExpectedDaemons,
				Kind:        kind,
				Status:      StateEmitted.String(),
				Version:     version,
			}
			if err := history.Create(ctx, round); err != nil {
				return fmt.Errorf("recording gather round: %w", err)
			}
			return history.Finish(ctx, round.ID, repository.GatherRoundUpdate{
				RespondingCount: respondingCount,
				WidthWords:      widthWords,
				OutputPath:      path,
				Status:          StateEmitted.String(),
			})
		})
	}
	if archive != nil {
		compress := f.cfg.CompressArchive
		tasks = append(tasks, func(ctx context.Context) error {
			manifestPath := path + ".json"
			manifest := archiveManifest{
				Kind:            kind,
				StartedAt:       started,
				RespondingCount: respondingCount,
				WidthWords:      widthWords,
				Version:         version,
				OutputPath:      path,
			}
			if err := writer.NewJSONWriter[archiveManifest]().WriteToFile(manifest, manifestPath); err != nil {
				return fmt.Errorf("writing archive manifest: %w", err)
			}
			if err := archive.UploadFile(ctx, manifestPath, manifestPath); err != nil {
				return fmt.Errorf("archiving round manifest: %w", err)
			}

			uploadPath, key := path, path
			if compress {
				gzPath, err := compressDotFile(path)
				if err != nil {
					return fmt.Errorf("compressing gather round output: %w", err)
				}
				uploadPath, key = gzPath, gzPath
			}
			if err := archive.UploadFile(ctx, key, uploadPath); err != nil {
				return fmt.Errorf("archiving gather round output: %w", err)
			}
			return nil
		})
	}

	go func() {
		results := pool.ExecuteFunc(context.Background(), tasks, func(ctx context.Context, task func(context.Context) error) (struct{}, error) {
			return struct{}{}, task(ctx)
		})
		for _, r := range results {
			if r.Error != nil {
				logger.Warn("control: background round bookkeeping failed: %v", r.Error)
			}
		}
	}()
}

// archiveManifest is the JSON sidecar written alongside each archived
// round's output, recording the bookkeeping fields the history repository
// also stores, for an archive that outlives the round-history database.
type archiveManifest struct {
	Kind            string    `json:"kind"`
	StartedAt       time.Time `json:"started_at"`
	RespondingCount int       `json:"responding_count"`
	WidthWords      int       `json:"width_words"`
	Version         string    `json:"version"`
	OutputPath      string    `json:"output_path"`
}

// compressDotFile gzips the .dot file at path into path+".gz", so archived
// bundles take a fraction of the emitted graph's disk footprint. Returns
// the compressed file's path.
func compressDotFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	comp := compression.NewGzipCompressor(compression.LevelDefault)
	compressed, err := comp.Compress(data)
	if err != nil {
		return "", fmt.Errorf("gzip: %w", err)
	}
	gzPath := path + ".gz"
	if err := os.WriteFile(gzPath, compressed, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", gzPath, err)
	}
	return gzPath, nil
}

// graphWidthWords returns the leading-edge bit-vector width of g, or 0 for
// an empty graph.
func graphWidthWords(g *graph.Graph) int {
	for _, e := range g.Edges() {
		return e.Label.Vec.Width()
	}
	return 0
}

// Package preload renders the images around the cursor in the background so
// that stepping to a neighbor finds it already cached.
//
// A Scheduler owns one worker goroutine and runs at most one pass at a
// time. Triggering while a pass runs does nothing: navigation triggers again
// on the next move, so a missed request is only ever deferred.
package preload

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/render"
	"github.com/wilbur182/pixelterm/internal/rendercache"
)

const (
	// DefaultRadius is how many entries on each side of the cursor a pass covers.
	DefaultRadius = 10

	// DefaultDelay is the pause after each render in a pass.
	DefaultDelay = 50 * time.Millisecond
)

// Plan is one pass worth of work, captured when the pass starts.
type Plan struct {
	Generation *rendercache.Generation
	Entries    []catalog.Entry // ascending catalog order, cursor excluded
	Scale      float64
}

// Source is the session state a pass reads and feeds back into.
type Source interface {
	// PreloadPlan returns the window around the current cursor. It reports
	// false when there is nothing to do.
	PreloadPlan(radius int) (Plan, bool)

	// Promote offers freshly rendered text for e. The source decides, using
	// the cursor as it is now, whether it belongs in memory.
	Promote(gen *rendercache.Generation, e catalog.Entry, text string)

	// WantsPromotion reports whether e sits next to the cursor but is not in
	// memory yet. Such entries are loaded from disk instead of skipped.
	WantsPromotion(gen *rendercache.Generation, e catalog.Entry) bool

	// Settle evicts memory entries that drifted away from the cursor.
	Settle()
}

// Options configures a Scheduler.
type Options struct {
	Radius int
	Delay  time.Duration
	Logger *slog.Logger

	// OnPass, if set, is called from the worker after every pass.
	OnPass func(Report)
}

// Report summarizes one pass.
type Report struct {
	Planned  int
	Skipped  int // already on disk
	Promoted int // skipped entries loaded from disk into memory
	Rendered int
	Failed   int
	Duration time.Duration
}

// Stats are cumulative counters since the scheduler was created.
type Stats struct {
	Passes   uint64
	Triggers uint64
	Ignored  uint64 // triggers dropped because a pass was running
	Rendered uint64
	Failed   uint64
}

// Scheduler is the single background preload worker.
type Scheduler struct {
	src      Source
	renderer render.Renderer
	radius   int
	delay    time.Duration
	logger   *slog.Logger
	onPass   func(Report)

	wake    chan struct{}
	running atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	passes   atomic.Uint64
	triggers atomic.Uint64
	ignored  atomic.Uint64
	rendered atomic.Uint64
	failed   atomic.Uint64
}

// New creates a scheduler. Call Start before triggering.
func New(src Source, r render.Renderer, opts Options) *Scheduler {
	if opts.Radius <= 0 {
		opts.Radius = DefaultRadius
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		src:      src,
		renderer: r,
		radius:   opts.Radius,
		delay:    opts.Delay,
		logger:   opts.Logger,
		onPass:   opts.OnPass,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the worker. It returns immediately; the worker runs until
// ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.loop(ctx)
	})
}

// Stop ends the worker and waits for it to exit. An in-flight render sees
// its context canceled.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

// Trigger requests a pass. It reports false, and does nothing, when a pass
// is already running or pending.
func (s *Scheduler) Trigger() bool {
	s.triggers.Add(1)
	if !s.running.CompareAndSwap(false, true) {
		s.ignored.Add(1)
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Running reports whether a pass is running or about to start.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Passes:   s.passes.Load(),
		Triggers: s.triggers.Load(),
		Ignored:  s.ignored.Load(),
		Rendered: s.rendered.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			start := time.Now()
			rep := s.pass(ctx)
			rep.Duration = time.Since(start)
			s.passes.Add(1)
			s.running.Store(false)

			s.logger.Debug("preload pass complete",
				"planned", rep.Planned, "skipped", rep.Skipped, "promoted", rep.Promoted,
				"rendered", rep.Rendered, "failed", rep.Failed,
				"duration", rep.Duration)
			if s.onPass != nil {
				s.onPass(rep)
			}
		}
	}
}

// pass renders every missing entry of the plan in order. Failures are
// counted and skipped; the entry is retried on a later pass.
func (s *Scheduler) pass(ctx context.Context) Report {
	plan, ok := s.src.PreloadPlan(s.radius)
	if !ok {
		s.src.Settle()
		return Report{}
	}

	rep := Report{Planned: len(plan.Entries)}
	for _, e := range plan.Entries {
		if ctx.Err() != nil {
			break
		}
		if plan.Generation.Has(e) {
			rep.Skipped++
			if s.src.WantsPromotion(plan.Generation, e) {
				if text, err := plan.Generation.Read(e); err == nil {
					s.src.Promote(plan.Generation, e, text)
					rep.Promoted++
				}
			}
			continue
		}

		text, err := s.renderer.Render(ctx, e.Path, plan.Scale)
		if err != nil {
			rep.Failed++
			s.failed.Add(1)
			s.logger.Debug("preload render failed", "path", e.Path, "err", err)
		} else {
			if werr := plan.Generation.Write(e, text); werr != nil {
				s.logger.Debug("preload cache write failed", "path", e.Path, "err", werr)
			}
			s.src.Promote(plan.Generation, e, text)
			rep.Rendered++
			s.rendered.Add(1)
		}

		if !sleep(ctx, s.delay) {
			break
		}
	}

	s.src.Settle()
	return rep
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Package capture runs source readers concurrently, applies detectors to
// every chunk and folds the candidates into a per-run fingerprint table.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/redactyl/livegrab/internal/detectors"
	"github.com/redactyl/livegrab/internal/source"
	"github.com/redactyl/livegrab/internal/types"
)

var (
	// ErrNoSourcesAvailable means no data could be collected at all.
	ErrNoSourcesAvailable = errors.New("no sources available")
	// ErrTimeout is set as Result.Cause when the run-wide timeout expired.
	// It is never returned as an error.
	ErrTimeout = errors.New("capture timed out")
)

// Config controls a capture run.
type Config struct {
	// SourceTimeout bounds each source on its own. Zero means only the
	// run-wide timeout applies.
	SourceTimeout time.Duration
	// Workers caps how many sources are read at once. Zero means one
	// goroutine per source.
	Workers int
	// BestEffort returns whatever was gathered even when every source failed.
	BestEffort bool
	// MinConfidence drops candidates below this confidence.
	MinConfidence float64
	// Progress, when set, is called after each chunk from reader goroutines.
	Progress func(types.SourceDescriptor)
	Logger   log.FieldLogger
	Now      func() time.Time
}

// Option adjusts a Config.
type Option func(*Config)

func WithSourceTimeout(d time.Duration) Option { return func(c *Config) { c.SourceTimeout = d } }
func WithWorkers(n int) Option                 { return func(c *Config) { c.Workers = n } }
func WithBestEffort(b bool) Option             { return func(c *Config) { c.BestEffort = b } }
func WithMinConfidence(v float64) Option       { return func(c *Config) { c.MinConfidence = v } }
func WithLogger(l log.FieldLogger) Option      { return func(c *Config) { c.Logger = l } }

func WithProgress(fn func(types.SourceDescriptor)) Option {
	return func(c *Config) { c.Progress = fn }
}

// Result is the outcome of one capture run. Captures are in order of first
// observation.
type Result struct {
	RunID      string
	Captures   []types.Capture
	Incomplete bool
	// Cause is ErrTimeout, a per-source timeout or the caller's context
	// error when Incomplete is set.
	Cause           error
	Failures        []*source.SourceError
	SourcesOpened   int
	SourcesWithData int
	Chunks          int64
	Events          int64
	Started         time.Time
	Duration        time.Duration
}

// FailureMessages renders Failures for reports.
func (r *Result) FailureMessages() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Error())
	}
	return out
}

// Capturer applies an ordered detector set to live sources.
type Capturer struct {
	detectors []detectors.Detector
	cfg       Config
}

// New returns a Capturer. Detector order decides which detector is credited
// when two report the same value at the same span.
func New(ds []detectors.Detector, cfg Config) *Capturer {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Capturer{detectors: ds, cfg: cfg}
}

// GrabLive builds a Capturer from opts and runs it once.
func GrabLive(ctx context.Context, sources []source.Reader, timeout time.Duration, ds []detectors.Detector, opts ...Option) (*Result, error) {
	var cfg Config
	for _, o := range opts {
		o(&cfg)
	}
	return New(ds, cfg).GrabLive(ctx, sources, timeout)
}

// run holds the state shared by the source goroutines of one GrabLive call.
type run struct {
	id         string
	table      *table
	opened     atomic.Int64
	withData   atomic.Int64
	chunks     atomic.Int64
	incomplete atomic.Bool

	mu       sync.Mutex
	failures []*source.SourceError
	cause    error
}

func (r *run) fail(desc types.SourceDescriptor, op string, err error) {
	se, ok := source.Wrap(desc, op, err).(*source.SourceError)
	if !ok {
		se = &source.SourceError{Source: desc, Op: op, Err: err}
	}
	r.mu.Lock()
	r.failures = append(r.failures, se)
	r.mu.Unlock()
}

func (r *run) markIncomplete(cause error) {
	r.incomplete.Store(true)
	r.mu.Lock()
	if r.cause == nil {
		r.cause = cause
	}
	r.mu.Unlock()
}

// GrabLive opens every source concurrently and returns the captures gathered
// before all sources finished or timeout expired. A timeout of zero waits
// for the sources (or ctx). The returned Result is never modified after
// GrabLive returns, even if a reader that ignores cancellation is still
// running.
func (c *Capturer) GrabLive(ctx context.Context, sources []source.Reader, timeout time.Duration) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", ErrNoSourcesAvailable)
	}
	started := c.cfg.Now()
	r := &run{id: uuid.NewString(), table: newTable(c.cfg.Now)}
	logger := c.cfg.Logger.WithField("run_id", r.id)

	runCtx, cancel := context.WithCancel(ctx)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	workers := c.cfg.Workers
	if workers <= 0 || workers > len(sources) {
		workers = len(sources)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(workers)
		for _, src := range sources {
			g.Go(func() error {
				c.readSource(runCtx, src, r, logger)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		cause := ErrTimeout
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		r.markIncomplete(cause)
		logger.Warnf("(capture) stopped waiting for sources: %v", cause)
	}
	cancel()

	captures, events := r.table.seal()
	r.mu.Lock()
	failures := append([]*source.SourceError(nil), r.failures...)
	cause := r.cause
	r.mu.Unlock()

	res := &Result{
		RunID:           r.id,
		Captures:        captures,
		Incomplete:      r.incomplete.Load(),
		Cause:           cause,
		Failures:        failures,
		SourcesOpened:   int(r.opened.Load()),
		SourcesWithData: int(r.withData.Load()),
		Chunks:          r.chunks.Load(),
		Events:          events,
		Started:         started,
		Duration:        c.cfg.Now().Sub(started),
	}
	logger.WithFields(log.Fields{
		"captures": len(res.Captures),
		"events":   res.Events,
		"opened":   res.SourcesOpened,
		"failed":   len(res.Failures),
	}).Debug("(capture) run finished")

	if c.cfg.BestEffort {
		return res, nil
	}
	if res.SourcesOpened == 0 || (len(failures) > 0 && res.SourcesWithData == 0) {
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			errs = append(errs, f)
		}
		return nil, fmt.Errorf("%w: %d of %d sources failed: %w", ErrNoSourcesAvailable, len(failures), len(sources), errors.Join(errs...))
	}
	return res, nil
}

type item struct {
	opened bool
	chunk  source.Chunk
	err    error
}

// readSource pumps one reader from a separate goroutine so a reader that
// blocks without honouring ctx is abandoned when its timeout fires.
func (c *Capturer) readSource(ctx context.Context, src source.Reader, r *run, logger log.FieldLogger) {
	desc := src.Descriptor()
	logger = logger.WithField("source", desc.String())

	sctx := ctx
	if c.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, c.cfg.SourceTimeout)
		defer cancel()
	}
	if err := sctx.Err(); err != nil {
		r.fail(desc, "open", err)
		return
	}

	items := make(chan item)
	go pump(sctx, src, desc, items)

	hadData := false
	for {
		select {
		case it, ok := <-items:
			if !ok {
				return
			}
			switch {
			case it.err != nil:
				r.fail(desc, opOf(it), it.err)
				logger.WithError(it.err).Warn("(capture) source skipped")
				if it.opened {
					return
				}
			case it.opened:
				r.opened.Add(1)
				logger.Debug("(capture) source opened")
			default:
				if !hadData && len(it.chunk.Data) > 0 {
					hadData = true
					r.withData.Add(1)
				}
				r.chunks.Add(1)
				c.detect(sctx, it.chunk, r, logger)
				if c.cfg.Progress != nil {
					c.cfg.Progress(desc)
				}
			}
		case <-sctx.Done():
			if ctx.Err() == nil {
				err := fmt.Errorf("no end of data after %s: %w", c.cfg.SourceTimeout, context.DeadlineExceeded)
				r.fail(desc, "read", err)
				r.markIncomplete(err)
				logger.Warn("(capture) source timed out")
			}
			return
		}
	}
}

func opOf(it item) string {
	if it.opened {
		return "open"
	}
	return "read"
}

func pump(ctx context.Context, src source.Reader, desc types.SourceDescriptor, items chan<- item) {
	defer close(items)
	send := func(it item) bool {
		select {
		case items <- it:
			return true
		case <-ctx.Done():
			return false
		}
	}
	h, err := src.Open(ctx)
	if err != nil {
		send(item{opened: true, err: source.Wrap(desc, "open", err)})
		return
	}
	defer func() { _ = h.Close() }()
	if !send(item{opened: true}) {
		return
	}
	for {
		chunk, err := h.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				send(item{err: source.Wrap(desc, "read", err)})
			}
			return
		}
		if !send(item{chunk: chunk}) {
			return
		}
	}
}

type span struct{ start, end int }

// detect runs every detector over chunk and records the surviving
// candidates. Candidates starting outside the chunk's owned region are left
// to its neighbours. Candidates covering the same span count once, as the
// highest-confidence one; ties go to the earlier detector.
func (c *Capturer) detect(ctx context.Context, chunk source.Chunk, r *run, logger log.FieldLogger) {
	best := map[span]int{}
	var picked []types.Candidate
	for _, d := range c.detectors {
		if ctx.Err() != nil {
			return
		}
		for _, cand := range d.Detect(chunk.Data, chunk.Provenance) {
			if cand.Confidence < c.cfg.MinConfidence || !chunk.Owns(cand.Start) || len(cand.Value) == 0 {
				continue
			}
			k := span{cand.Start, cand.End}
			if i, dup := best[k]; dup {
				if cand.Confidence > picked[i].Confidence {
					picked[i] = cand
				}
				continue
			}
			best[k] = len(picked)
			picked = append(picked, cand)
		}
	}
	for _, cand := range picked {
		if cand.Provenance.Kind == "" {
			cand.Provenance = chunk.Provenance
		}
		created, ok := r.table.record(types.Fingerprint(cand.Kind, cand.Value), cand)
		if !ok {
			return
		}
		if created {
			logger.WithFields(log.Fields{"detector": cand.Detector, "kind": cand.Kind}).Debug("(capture) new capture")
		}
	}
}

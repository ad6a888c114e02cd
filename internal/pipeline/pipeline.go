// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one question through rewrite, retrieval, curation,
// diversity analysis and contradiction detection.
//
// An Engine is one session. It admits a single query at a time: a second
// Run or Submit while a query is in flight fails with ErrBusy instead of
// queueing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/evidence-engine/internal/async"
	"github.com/pdiddy/evidence-engine/internal/contradict"
	"github.com/pdiddy/evidence-engine/internal/curate"
	"github.com/pdiddy/evidence-engine/internal/diversity"
	"github.com/pdiddy/evidence-engine/internal/retry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultRetrieveLimit is the number of raw items requested when no limit
// is configured.
const DefaultRetrieveLimit = 40

var (
	// ErrBusy is returned when a query is already in flight on the Engine.
	ErrBusy = errors.New("a query is already in progress")

	// ErrSearchFailed is returned when retrieval fails. It wraps the cause,
	// usually a *retry.ExhaustedError.
	ErrSearchFailed = errors.New("could not complete search")
)

// Rewriter turns a question into a retrieval query. It must not fail for
// any reason other than an invalid question or cancellation.
type Rewriter interface {
	Rewrite(ctx context.Context, q types.Question) (types.RewriteResult, error)
}

// Retriever is a retrieval collaborator. It makes one attempt per call; the
// Engine owns retries.
type Retriever interface {
	Retrieve(ctx context.Context, rw types.RewriteResult, limit int) ([]types.EvidenceItem, error)
}

// Detector finds contradiction clusters in curated evidence.
type Detector interface {
	Detect(ctx context.Context, items []types.EvidenceItem) ([]types.ContradictionCluster, error)
}

// Result holds everything one query produced.
type Result struct {
	QueryID   string
	CreatedAt time.Time
	Question  string

	Rewrite types.RewriteResult

	// Candidates is the raw retrieval output, before curation.
	Candidates []types.EvidenceItem

	Curation       types.CurationResult
	Diversity      types.DiversityStats
	Contradictions []types.ContradictionCluster
}

// Engine orchestrates the pipeline for one session.
type Engine struct {
	rewriter  Rewriter
	retriever Retriever
	detector  Detector
	exec      *retry.Executor
	params    types.CurationParameters
	limit     int
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time

	busy atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor sets the executor wrapping retrieval calls.
func WithExecutor(x *retry.Executor) Option {
	return func(e *Engine) { e.exec = x }
}

// WithDetector replaces the default keyword contradiction detector.
func WithDetector(d Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithCurationParameters sets the curation parameters.
func WithCurationParameters(p types.CurationParameters) Option {
	return func(e *Engine) { e.params = p }
}

// WithRetrieveLimit sets the number of raw items requested from retrieval.
func WithRetrieveLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithObserver attaches a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine. Curation parameters are validated here so a bad
// configuration fails before any query runs.
func New(rw Rewriter, rt Retriever, opts ...Option) (*Engine, error) {
	if rw == nil || rt == nil {
		return nil, fmt.Errorf("pipeline needs a rewriter and a retriever")
	}
	e := &Engine{
		rewriter:  rw,
		retriever: rt,
		limit:     DefaultRetrieveLimit,
		observer:  nopObserver{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.detector == nil {
		e.detector = contradict.NewDetector()
	}
	if e.exec == nil {
		e.exec = retry.New(retry.DefaultPolicy(), retry.WithLogger(e.logger), retry.WithName("retrieve"))
	}
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Busy reports whether a query is in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Run answers q on the caller's goroutine.
func (e *Engine) Run(ctx context.Context, q types.Question) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	return e.run(ctx, q)
}

// Submit starts q on a background goroutine. The admission lock is taken
// before Submit returns, so ErrBusy is reported synchronously. Cancelling
// the Future stops the query, including any retry wait in progress.
func (e *Engine) Submit(ctx context.Context, q types.Question) (*async.Future[*Result], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return async.Run(ctx, func(ctx context.Context) (*Result, error) {
		defer e.busy.Store(false)
		return e.run(ctx, q)
	}), nil
}

func (e *Engine) run(ctx context.Context, q types.Question) (*Result, error) {
	res := &Result{
		QueryID:   uuid.NewString(),
		CreatedAt: e.now().UTC(),
		Question:  q.Normalized(),
	}
	log := e.logger.With(slog.String("query_id", res.QueryID))
	log.InfoContext(ctx, "query started", slog.String("question", res.Question))

	var err error

	err = e.phase(ctx, res.QueryID, PhaseRewrite, func(ctx context.Context) error {
		rw, err := e.rewriter.Rewrite(ctx, q)
		res.Rewrite = rw
		return err
	})
	if err != nil {
		return nil, err
	}

	err = e.phase(ctx, res.QueryID, PhaseRetrieve, func(ctx context.Context) error {
		items, err := retry.Do(ctx, e.exec, func(ctx context.Context) ([]types.EvidenceItem, error) {
			return e.retriever.Retrieve(ctx, res.Rewrite, e.limit)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
		res.Candidates = items
		return nil
	})
	if err != nil {
		log.WarnContext(ctx, "query failed", slog.String("phase", string(PhaseRetrieve)), slog.String("error", err.Error()))
		return nil, err
	}

	err = e.phase(ctx, res.QueryID, PhaseCurate, func(ctx context.Context) error {
		cr, err := curate.Curate(res.Candidates, e.params)
		res.Curation = cr
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		stats    types.DiversityStats
		clusters []types.ContradictionCluster
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.phase(gctx, res.QueryID, PhaseAnalyze, func(context.Context) error {
			stats = diversity.Analyze(res.Candidates, res.Curation.Selected)
			return nil
		})
	})
	g.Go(func() error {
		return e.phase(gctx, res.QueryID, PhaseDetect, func(ctx context.Context) error {
			var err error
			clusters, err = e.detector.Detect(ctx, res.Curation.Selected)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Analysis computed after cancellation is discarded.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Diversity = stats
	res.Contradictions = clusters

	log.InfoContext(ctx, "query finished",
		slog.String("rewrite_source", string(res.Rewrite.Source)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Int("selected", len(res.Curation.Selected)),
		slog.Int("contradictions", len(res.Contradictions)),
	)
	return res, nil
}

// phase brackets fn with phase_start and phase_end events and reports the
// executor's attempts as retry_attempt events.
func (e *Engine) phase(ctx context.Context, queryID string, p Phase, fn func(context.Context) error) error {
	start := e.now()
	e.observer.OnEvent(Event{QueryID: queryID, Kind: EventPhaseStart, Phase: p, Time: start})

	ctx = retry.WithObserver(ctx, func(a retry.Attempt) {
		e.observer.OnEvent(Event{
			QueryID: queryID,
			Kind:    EventRetryAttempt,
			Phase:   p,
			Time:    e.now(),
			Err:     a.Err,
			Attempt: &a,
		})
	})
	err := fn(ctx)

	end := e.now()
	e.observer.OnEvent(Event{
		QueryID: queryID,
		Kind:    EventPhaseEnd,
		Phase:   p,
		Time:    end,
		Elapsed: end.Sub(start),
		Err:     err,
	})
	return err
}

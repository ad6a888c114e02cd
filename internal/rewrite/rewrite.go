// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite turns a user question into a retrieval query plus
// structured filters. A language model does the rewrite when one is
// configured; any failure to get a usable answer from it falls back to a
// deterministic local heuristic, so Rewrite only fails on bad input or
// cancellation.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/retry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultTimeout bounds one model call attempt.
const DefaultTimeout = 30 * time.Second

// DefaultCacheSize is the number of model rewrites kept when caching is on.
const DefaultCacheSize = 256

// Rewriter rewrites questions. It is safe for concurrent use.
type Rewriter struct {
	completer llm.Completer
	exec      *retry.Executor
	timeout   time.Duration
	cacheSize int
	cache     *lru.Cache[string, types.RewriteResult]
	logger    *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithExecutor replaces the default three-attempt executor.
func WithExecutor(e *retry.Executor) Option {
	return func(r *Rewriter) { r.exec = e }
}

// WithTimeout sets the per-attempt model timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Rewriter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCacheSize keeps up to n model rewrites in memory. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(r *Rewriter) { r.cacheSize = n }
}

// WithLogger sets the logger used for fallback records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rewriter) { r.logger = l }
}

// New returns a Rewriter backed by c. A nil c means every question takes the
// heuristic path.
func New(c llm.Completer, opts ...Option) (*Rewriter, error) {
	r := &Rewriter{
		completer: c,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = retry.New(retry.RewritePolicy(), retry.WithName("rewrite"), retry.WithLogger(r.logger))
	}
	if r.cacheSize > 0 {
		cache, err := lru.New[string, types.RewriteResult](r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating rewrite cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// NewFromConfig builds a Rewriter from configuration.
func NewFromConfig(c llm.Completer, cfg types.RewriteConfig, logger *slog.Logger) (*Rewriter, error) {
	policy, err := retry.PolicyFromConfig(cfg.Retry, retry.RewritePolicy())
	if err != nil {
		return nil, fmt.Errorf("rewrite retry: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return New(c,
		WithExecutor(retry.New(policy, retry.WithName("rewrite"), retry.WithLogger(logger))),
		WithTimeout(cfg.Timeout),
		WithCacheSize(cfg.CacheSize),
		WithLogger(logger),
	)
}

// Rewrite returns the retrieval form of q. It returns an error only when q
// is empty or ctx is cancelled; every model failure degrades to Heuristic.
func (r *Rewriter) Rewrite(ctx context.Context, q types.Question) (types.RewriteResult, error) {
	if err := q.Validate(); err != nil {
		return types.RewriteResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.RewriteResult{}, err
	}
	original := q.Normalized()
	if r.completer == nil {
		return Heuristic(original), nil
	}

	key := cacheKey(original)
	if r.cache != nil {
		if hit, ok := r.cache.Get(key); ok {
			hit.Original = original
			return hit, nil
		}
	}

	prompt, err := renderPrompt(original)
	if err != nil {
		return types.RewriteResult{}, fmt.Errorf("rendering rewrite prompt: %w", err)
	}

	raw, err := retry.Do(ctx, r.exec, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.completer.Complete(attemptCtx, prompt)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.RewriteResult{}, ctxErr
		}
		return r.fallback(ctx, original, err), nil
	}

	res, err := parseResponse(original, raw)
	if err != nil {
		return r.fallback(ctx, original, err), nil
	}
	if r.cache != nil {
		r.cache.Add(key, res)
	}
	return res, nil
}

func (r *Rewriter) fallback(ctx context.Context, original string, cause error) types.RewriteResult {
	r.logger.WarnContext(ctx, "query rewrite fell back to heuristic",
		slog.String("error_kind", string(retry.Classify(cause))),
		slog.Bool("exhausted", retry.IsExhausted(cause)),
		slog.String("error", cause.Error()),
	)
	return Heuristic(original)
}

func cacheKey(question string) string {
	return strings.ToLower(collapseSpace(question))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/evidence-engine/internal/contradict"
	"github.com/pdiddy/evidence-engine/internal/knowledge"
	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/retry"
	"github.com/pdiddy/evidence-engine/internal/rewrite"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// components holds the collaborators built from configuration. Close
// releases the knowledge store when one was opened.
type components struct {
	engine *pipeline.Engine
	store  *knowledge.Store
}

func (c *components) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func buildRewriter(ctx context.Context, cfg types.RewriteConfig) (*rewrite.Rewriter, error) {
	completer, err := llm.NewCompleter(ctx, cfg.AIConfig)
	if err != nil {
		return nil, err
	}
	return rewrite.NewFromConfig(completer, cfg, logger)
}

func buildDetector(cfg types.ContradictionConfig) (*contradict.Detector, error) {
	opts := []contradict.Option{contradict.WithMaxExcerptLen(cfg.MaxExcerptLen)}
	if cfg.VocabularyFile != "" {
		vocab, err := contradict.LoadVocabulary(cfg.VocabularyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contradict.WithVocabulary(vocab))
	}
	return contradict.NewDetector(opts...), nil
}

// buildComponents wires a pipeline Engine from cfg. Progress events go to
// progress when it is non-nil.
func buildComponents(ctx context.Context, cfg types.PipelineConfig, progress io.Writer) (*components, error) {
	rw, err := buildRewriter(ctx, cfg.Rewrite)
	if err != nil {
		return nil, err
	}

	det, err := buildDetector(cfg.Contradiction)
	if err != nil {
		return nil, err
	}

	policy, err := retry.PolicyFromConfig(cfg.Search.Retry, retry.DefaultPolicy())
	if err != nil {
		return nil, fmt.Errorf("search retry: %w", err)
	}
	exec := retry.New(policy, retry.WithLogger(logger), retry.WithName("retrieve"))

	c := &components{}
	var rt pipeline.Retriever
	switch cfg.Search.Backend {
	case types.RetrievalKnowledge, "":
		store, err := knowledge.NewStore(cfg.KnowledgeBase)
		if err != nil {
			return nil, err
		}
		c.store = store
		rt = store
	case types.RetrievalSemanticScholar:
		rt = search.NewSemanticScholar(cfg.Search)
	default:
		return nil, fmt.Errorf("unknown search backend %q: use knowledge or semantic_scholar", cfg.Search.Backend)
	}

	opts := []pipeline.Option{
		pipeline.WithExecutor(exec),
		pipeline.WithDetector(det),
		pipeline.WithCurationParameters(cfg.Curation),
		pipeline.WithRetrieveLimit(cfg.Search.MaxResults),
		pipeline.WithLogger(logger),
	}
	if progress != nil {
		opts = append(opts, pipeline.WithObserver(pipeline.NewProgressWriter(progress)))
	}

	engine, err := pipeline.New(rw, rt, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.engine = engine
	return c, nil
}

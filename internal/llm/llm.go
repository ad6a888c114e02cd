// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm adapts hosted language-model APIs to a single Completer
// interface. Backends make exactly one request per call; SDK-level retries
// are disabled and HTTP failures surface as *retry.StatusError so the retry
// executor owns every retry decision.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/evidence-engine/internal/retry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultMaxTokens is used when AIConfig.MaxTokens is zero.
const DefaultMaxTokens = 1024

// ErrEmptyCompletion is returned when a backend answers without text.
var ErrEmptyCompletion = errors.New("model returned no text")

// Completer sends one prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewCompleter builds the backend named by cfg.Provider. It returns a nil
// Completer and no error for ProviderNone.
func NewCompleter(ctx context.Context, cfg types.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case types.ProviderNone, "":
		return nil, nil
	case types.ProviderAnthropic:
		return NewAnthropic(cfg)
	case types.ProviderOpenAI:
		return NewOpenAI(cfg)
	case types.ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func maxTokens(cfg types.AIConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return DefaultMaxTokens
}

func requireKey(cfg types.AIConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%s API key is required", cfg.Provider)
	}
	if cfg.Model == "" {
		return fmt.Errorf("%s model is required", cfg.Provider)
	}
	return nil
}

// withStatus wraps err in a retry.StatusError when the SDK reported an HTTP
// status code.
func withStatus(code int, err error) error {
	if code <= 0 {
		return err
	}
	return &retry.StatusError{StatusCode: code, Err: err}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by collaborators that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig is the configuration form of a retry policy. It is loaded once
// at process start and converted with retry.PolicyFromConfig.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first (>= 1).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay caps every delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// BackoffFactor multiplies the delay after each failure (> 1).
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`

	// RateLimitBaseDelay and RateLimitMaxDelay replace BaseDelay and MaxDelay
	// after a rate-limited failure.
	RateLimitBaseDelay time.Duration `json:"rate_limit_base_delay" yaml:"rate_limit_base_delay" mapstructure:"rate_limit_base_delay"`
	RateLimitMaxDelay  time.Duration `json:"rate_limit_max_delay" yaml:"rate_limit_max_delay" mapstructure:"rate_limit_max_delay"`

	// RetryableErrors lists the error kinds worth retrying
	// (transient_network, rate_limited, server_unavailable, protocol_error).
	// Empty means all four.
	RetryableErrors []string `json:"retryable_errors,omitempty" yaml:"retryable_errors,omitempty" mapstructure:"retryable_errors"`
}

// LLMProvider selects the completion backend.
type LLMProvider string

const (
	ProviderNone      LLMProvider = "none"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderGemini    LLMProvider = "gemini"
)

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend. "none" disables model calls.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxTokens bounds the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// BaseURL overrides the provider endpoint (proxies, local gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// RewriteConfig holds settings for the query rewriter.
type RewriteConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Retry is the policy for model calls (default 3 attempts, 1s/10s).
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`

	// Timeout bounds each model call attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// CacheSize is the number of model rewrites kept in memory (0 disables).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// RetrievalBackend selects the retrieval collaborator.
type RetrievalBackend string

const (
	RetrievalKnowledge       RetrievalBackend = "knowledge"
	RetrievalSemanticScholar RetrievalBackend = "semantic_scholar"
)

// SearchConfig holds settings for retrieval.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the collaborator: knowledge or semantic_scholar.
	Backend RetrievalBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// MaxResults is the number of raw evidence items requested (default 40).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// Retry is the policy for retrieval calls.
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// KnowledgeBaseConfig holds settings for the local passage store.
type KnowledgeBaseConfig struct {
	// KnowledgeDir is the base directory for knowledge (contains corpus/, index/).
	KnowledgeDir string `json:"knowledge_dir" yaml:"knowledge_dir" mapstructure:"knowledge_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ContradictionConfig holds settings for contradiction detection.
type ContradictionConfig struct {
	// VocabularyFile is an optional YAML vocabulary replacing the built-in one.
	VocabularyFile string `json:"vocabulary_file,omitempty" yaml:"vocabulary_file,omitempty" mapstructure:"vocabulary_file"`

	// MaxExcerptLen bounds each sample excerpt in runes (default 240).
	MaxExcerptLen int `json:"max_excerpt_len" yaml:"max_excerpt_len" mapstructure:"max_excerpt_len"`
}

// ExportFormat selects the session export encoding.
type ExportFormat string

const (
	ExportYAML ExportFormat = "yaml"
	ExportJSON ExportFormat = "json"
)

// ExportConfig holds settings for session exports.
type ExportConfig struct {
	// Dir is where session records are written (e.g. "output/sessions").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	Format ExportFormat `json:"format" yaml:"format" mapstructure:"format"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// PipelineConfig groups all component configurations.
type PipelineConfig struct {
	Rewrite       RewriteConfig       `json:"rewrite" yaml:"rewrite" mapstructure:"rewrite"`
	Search        SearchConfig        `json:"search" yaml:"search" mapstructure:"search"`
	KnowledgeBase KnowledgeBaseConfig `json:"knowledge_base" yaml:"knowledge_base" mapstructure:"knowledge_base"`
	Curation      CurationParameters  `json:"curation" yaml:"curation" mapstructure:"curation"`
	Contradiction ContradictionConfig `json:"contradiction" yaml:"contradiction" mapstructure:"contradiction"`
	Export        ExportConfig        `json:"export" yaml:"export" mapstructure:"export"`
	Server        ServerConfig        `json:"server" yaml:"server" mapstructure:"server"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/secrets"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const defaultUserAgent = "evidence-engine/0.1"

// setDefaults registers every configuration key so environment variables
// can override keys that no config file mentions.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rewrite.provider", string(types.ProviderNone))
	v.SetDefault("rewrite.model", "")
	v.SetDefault("rewrite.api_key", "")
	v.SetDefault("rewrite.base_url", "")
	v.SetDefault("rewrite.max_tokens", 1024)
	v.SetDefault("rewrite.timeout", 30*time.Second)
	v.SetDefault("rewrite.cache_size", 256)
	v.SetDefault("rewrite.retry.max_attempts", 3)
	v.SetDefault("rewrite.retry.base_delay", time.Second)
	v.SetDefault("rewrite.retry.max_delay", 10*time.Second)

	v.SetDefault("search.backend", string(types.RetrievalKnowledge))
	v.SetDefault("search.max_results", 40)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.user_agent", defaultUserAgent)
	v.SetDefault("search.semantic_scholar_api_key", "")
	v.SetDefault("search.retry.max_attempts", 5)
	v.SetDefault("search.retry.base_delay", time.Second)
	v.SetDefault("search.retry.max_delay", 60*time.Second)
	v.SetDefault("search.retry.rate_limit_base_delay", 5*time.Second)
	v.SetDefault("search.retry.rate_limit_max_delay", 300*time.Second)

	v.SetDefault("knowledge_base.knowledge_dir", "knowledge")
	v.SetDefault("knowledge_base.max_results", 20)

	v.SetDefault("curation.score_cutoff", 0.0)
	v.SetDefault("curation.per_source_cap", 3)
	v.SetDefault("curation.max_sources", 12)

	v.SetDefault("contradiction.vocabulary_file", "")
	v.SetDefault("contradiction.max_excerpt_len", 240)

	v.SetDefault("export.dir", "output/sessions")
	v.SetDefault("export.format", string(types.ExportYAML))

	v.SetDefault("server.addr", ":8080")
}

// loadConfig decodes the viper state into a PipelineConfig and fills API
// keys from .secrets/ where the configuration leaves them empty.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

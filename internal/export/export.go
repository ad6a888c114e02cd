// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes session records: the rewrite, curation, diversity
// and contradiction results of one query as a single YAML or JSON file.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Record is the exported form of one query.
type Record struct {
	QueryID        string                       `json:"query_id" yaml:"query_id"`
	CreatedAt      time.Time                    `json:"created_at" yaml:"created_at"`
	Question       string                       `json:"question" yaml:"question"`
	Rewrite        types.RewriteResult          `json:"rewrite" yaml:"rewrite"`
	Curation       types.CurationResult         `json:"curation" yaml:"curation"`
	Diversity      types.DiversityStats         `json:"diversity" yaml:"diversity"`
	Contradictions []types.ContradictionCluster `json:"contradictions" yaml:"contradictions"`
}

// FromResult builds a Record from a pipeline result.
func FromResult(res *pipeline.Result) Record {
	clusters := res.Contradictions
	if clusters == nil {
		clusters = []types.ContradictionCluster{}
	}
	return Record{
		QueryID:        res.QueryID,
		CreatedAt:      res.CreatedAt,
		Question:       res.Question,
		Rewrite:        res.Rewrite,
		Curation:       res.Curation,
		Diversity:      res.Diversity,
		Contradictions: clusters,
	}
}

// Encode writes rec to w in the given format.
func Encode(w io.Writer, rec Record, format types.ExportFormat) error {
	switch format {
	case types.ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case types.ExportYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes rec to cfg.Dir/<query_id>.<format> and returns the path.
func WriteFile(rec Record, cfg types.ExportConfig) (string, error) {
	format := cfg.Format
	if format == "" {
		format = types.ExportYAML
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	// Encode first so a bad format or record leaves no file behind.
	var buf bytes.Buffer
	if err := Encode(&buf, rec, format); err != nil {
		return "", err
	}
	path := filepath.Join(dir, rec.QueryID+"."+string(format))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

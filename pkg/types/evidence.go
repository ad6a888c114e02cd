// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline:
// questions and their rewrites, retrieved evidence, curation results,
// diversity statistics, contradiction clusters, and configuration.
//
// Every value here is plain data suitable for YAML or JSON export.
package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
)

// EvidenceItem is a scored text excerpt tied to a source document. Items are
// produced by a retrieval collaborator and are read-only to the core.
type EvidenceItem struct {
	// ID is stable for a given source and offset (see EvidenceID).
	ID string `json:"id" yaml:"id"`

	// SourceID identifies the document the excerpt came from.
	SourceID string `json:"source_id" yaml:"source_id"`

	// Citation is the human-readable reference for the source.
	Citation string `json:"citation" yaml:"citation"`

	// Page is the page the excerpt starts on, when known.
	Page *int `json:"page,omitempty" yaml:"page,omitempty"`

	// Score is the retrieval relevance. The scale is defined by the
	// collaborator and is only comparable within one retrieval batch.
	Score float64 `json:"score" yaml:"score"`

	// Text is the excerpt itself.
	Text string `json:"text" yaml:"text"`

	// Year is the publication year of the source, when known.
	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or conference of the source, when known.
	Venue *string `json:"venue,omitempty" yaml:"venue,omitempty"`
}

// Key returns the identity used for deduplication. Items without an ID fall
// back to a hash of source and text.
func (e EvidenceItem) Key() string {
	if e.ID != "" {
		return e.ID
	}
	h := sha256.New()
	h.Write([]byte(e.SourceID))
	h.Write([]byte{0})
	h.Write([]byte(e.Text))
	return fmt.Sprintf("text:%x", h.Sum(nil))[:17]
}

// EvidenceID derives a stable identifier from a source and a character
// offset within it: the first 12 hex characters of SHA-256(source, offset).
func EvidenceID(sourceID string, offset int) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	fmt.Fprintf(h, "#%d", offset)
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// ErrInvalidParameters marks a CurationParameters contract violation.
var ErrInvalidParameters = errors.New("invalid curation parameters")

// CurationParameters controls one curation pass.
type CurationParameters struct {
	// ScoreCutoff discards items scoring strictly below it.
	ScoreCutoff float64 `json:"score_cutoff" yaml:"score_cutoff" mapstructure:"score_cutoff"`

	// PerSourceCap limits items per SourceID. Zero means unlimited.
	PerSourceCap int `json:"per_source_cap" yaml:"per_source_cap" mapstructure:"per_source_cap"`

	// MaxSources limits the selected set. Zero leaves the size to the
	// retrieval collaborator's default.
	MaxSources int `json:"max_sources" yaml:"max_sources" mapstructure:"max_sources"`
}

// Validate reports negative values and a NaN cutoff, which are programming
// errors.
func (p CurationParameters) Validate() error {
	switch {
	case math.IsNaN(p.ScoreCutoff):
		return fmt.Errorf("%w: score_cutoff is NaN", ErrInvalidParameters)
	case p.ScoreCutoff < 0:
		return fmt.Errorf("%w: score_cutoff %v is negative", ErrInvalidParameters, p.ScoreCutoff)
	case p.PerSourceCap < 0:
		return fmt.Errorf("%w: per_source_cap %d is negative", ErrInvalidParameters, p.PerSourceCap)
	case p.MaxSources < 0:
		return fmt.Errorf("%w: max_sources %d is negative", ErrInvalidParameters, p.MaxSources)
	}
	return nil
}

// CurationStats records how many items survived each curation step and why
// the rest were discarded.
type CurationStats struct {
	Input          int `json:"input" yaml:"input"`
	AfterDedup     int `json:"after_dedup" yaml:"after_dedup"`
	AfterCutoff    int `json:"after_cutoff" yaml:"after_cutoff"`
	AfterSourceCap int `json:"after_source_cap" yaml:"after_source_cap"`
	Selected       int `json:"selected" yaml:"selected"`

	Duplicates     int `json:"duplicates" yaml:"duplicates"`
	BelowCutoff    int `json:"below_cutoff" yaml:"below_cutoff"`
	OverSourceCap  int `json:"over_source_cap" yaml:"over_source_cap"`
	OverMaxSources int `json:"over_max_sources" yaml:"over_max_sources"`
}

// Discarded returns the total number of discarded items.
func (s CurationStats) Discarded() int {
	return s.Duplicates + s.BelowCutoff + s.OverSourceCap + s.OverMaxSources
}

// CurationResult is the bounded, ranked evidence set used for answering.
type CurationResult struct {
	// Selected is ordered by descending score; ties keep retrieval order.
	Selected []EvidenceItem `json:"selected" yaml:"selected"`

	// Discarded holds every dropped item, in the order the steps dropped them.
	Discarded []EvidenceItem `json:"discarded" yaml:"discarded"`

	Stats CurationStats `json:"stats" yaml:"stats"`
}

// DiversityStats describes redundancy reduction between the candidate set and
// the selected set.
type DiversityStats struct {
	CandidateCount int `json:"candidate_count" yaml:"candidate_count"`
	SelectedCount  int `json:"selected_count" yaml:"selected_count"`

	// Score statistics over the candidates. Nil when there are none.
	ScoreMin    *float64 `json:"score_min" yaml:"score_min"`
	ScoreMean   *float64 `json:"score_mean" yaml:"score_mean"`
	ScoreMax    *float64 `json:"score_max" yaml:"score_max"`
	ScoreStdDev *float64 `json:"score_stddev" yaml:"score_stddev"`

	// PerSourceCounts counts selected items per SourceID.
	PerSourceCounts map[string]int `json:"per_source_counts" yaml:"per_source_counts"`

	UniqueSourcesBefore int `json:"unique_sources_before" yaml:"unique_sources_before"`
	UniqueSourcesAfter  int `json:"unique_sources_after" yaml:"unique_sources_after"`

	// Shannon entropy (nats) of the per-source item distribution.
	SourceEntropyBefore float64 `json:"source_entropy_before" yaml:"source_entropy_before"`
	SourceEntropyAfter  float64 `json:"source_entropy_after" yaml:"source_entropy_after"`
}

// RawReduction is the number of items curation removed.
func (d DiversityStats) RawReduction() int {
	return d.CandidateCount - d.SelectedCount
}

// UniqueReduction is the number of distinct sources curation removed.
func (d DiversityStats) UniqueReduction() int {
	return d.UniqueSourcesBefore - d.UniqueSourcesAfter
}

// RedundancyRatio is UniqueReduction relative to RawReduction. A value near
// zero means curation removed items without losing sources. The boolean is
// false when nothing was removed.
func (d DiversityStats) RedundancyRatio() (float64, bool) {
	raw := d.RawReduction()
	if raw <= 0 {
		return 0, false
	}
	return float64(d.UniqueReduction()) / float64(raw), true
}

// ContradictionCluster flags an entity whose claims disagree in polarity
// across sources.
type ContradictionCluster struct {
	EntityKey       string   `json:"entity_key" yaml:"entity_key"`
	PositiveSources []string `json:"positive_sources" yaml:"positive_sources"`
	NegativeSources []string `json:"negative_sources" yaml:"negative_sources"`

	// SampleExcerpts holds at most four excerpts, positive ones first.
	SampleExcerpts []string `json:"sample_excerpts" yaml:"sample_excerpts"`
}

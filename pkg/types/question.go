// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"strings"
)

// ErrEmptyQuestion is returned when a question is empty after trimming.
var ErrEmptyQuestion = errors.New("question is empty")

// Question is the natural-language question a user asks against the corpus.
type Question string

// Normalized returns the question with surrounding whitespace removed.
func (q Question) Normalized() string {
	return strings.TrimSpace(string(q))
}

// Validate reports ErrEmptyQuestion when the question has no content.
func (q Question) Validate() error {
	if q.Normalized() == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// RewriteSource records which strategy produced a RewriteResult.
type RewriteSource string

const (
	RewriteLLM       RewriteSource = "llm"
	RewriteHeuristic RewriteSource = "heuristic"
)

// YearRange bounds publication years, inclusive on both ends.
type YearRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Valid reports whether Min <= Max.
func (y YearRange) Valid() bool {
	return y.Min <= y.Max
}

// Contains reports whether year falls inside the range.
func (y YearRange) Contains(year int) bool {
	return year >= y.Min && year <= y.Max
}

// FilterSet holds structured retrieval filters derived from a question.
// The string slices behave as sets: entries are unique under case-insensitive
// comparison and keep the spelling and order of their first occurrence.
type FilterSet struct {
	// Years restricts publication year. Nil means no restriction.
	Years *YearRange `json:"years,omitempty" yaml:"years,omitempty"`

	Venues     []string `json:"venues,omitempty" yaml:"venues,omitempty"`
	Fields     []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Species    []string `json:"species,omitempty" yaml:"species,omitempty"`
	StudyTypes []string `json:"study_types,omitempty" yaml:"study_types,omitempty"`
	Outcomes   []string `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f FilterSet) IsEmpty() bool {
	return f.Years == nil && len(f.Venues) == 0 && len(f.Fields) == 0 &&
		len(f.Species) == 0 && len(f.StudyTypes) == 0 && len(f.Outcomes) == 0
}

// RewriteResult is the retrieval-optimized form of a question. It is created
// once per query attempt and never mutated afterwards.
type RewriteResult struct {
	Original  string        `json:"original" yaml:"original"`
	Rewritten string        `json:"rewritten" yaml:"rewritten"`
	Filters   FilterSet     `json:"filters" yaml:"filters"`
	Source    RewriteSource `json:"source" yaml:"source"`
}

// Query returns the text handed to retrieval: the rewritten query, or the
// original when no rewrite is present.
func (r RewriteResult) Query() string {
	if strings.TrimSpace(r.Rewritten) != "" {
		return r.Rewritten
	}
	return r.Original
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package contradict flags entities whose mentions disagree in polarity
// across sources.
//
// Extraction and polarity are pluggable strategies. The defaults match
// keywords from a Vocabulary; they promise deterministic output for
// identical input, not linguistic correctness, so clusters are advisory.
package contradict

import (
	"context"
	"sort"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Polarity is the stance of a sentence toward the entity it mentions.
type Polarity int

const (
	Neutral Polarity = iota
	Positive
	Negative
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Mention is one sentence that names an entity.
type Mention struct {
	EntityKey string
	Sentence  string
}

// EntityExtractor finds entity mentions in a text.
type EntityExtractor interface {
	Extract(text string) []Mention
}

// PolarityClassifier assigns a polarity to one sentence.
type PolarityClassifier interface {
	Classify(sentence string) Polarity
}

const (
	// DefaultMaxExcerptLen bounds each sample excerpt, in runes.
	DefaultMaxExcerptLen = 240

	excerptsPerPolarity = 2
)

// Detector builds contradiction clusters from curated evidence.
type Detector struct {
	extractor     EntityExtractor
	classifier    PolarityClassifier
	maxExcerptLen int
}

// Option configures a Detector.
type Option func(*Detector)

// WithVocabulary uses keyword strategies compiled from v.
func WithVocabulary(v Vocabulary) Option {
	return func(d *Detector) {
		d.extractor = NewKeywordExtractor(v)
		d.classifier = NewKeywordClassifier(v)
	}
}

// WithExtractor replaces the entity extractor.
func WithExtractor(e EntityExtractor) Option {
	return func(d *Detector) { d.extractor = e }
}

// WithClassifier replaces the polarity classifier.
func WithClassifier(c PolarityClassifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// WithMaxExcerptLen sets the excerpt bound in runes.
func WithMaxExcerptLen(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxExcerptLen = n
		}
	}
}

// NewDetector returns a Detector using DefaultVocabulary unless options
// say otherwise.
func NewDetector(opts ...Option) *Detector {
	v := DefaultVocabulary()
	d := &Detector{
		extractor:     NewKeywordExtractor(v),
		classifier:    NewKeywordClassifier(v),
		maxExcerptLen: DefaultMaxExcerptLen,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type entityTally struct {
	pos, neg           map[string]bool
	posLines, negLines []string
}

// Detect returns clusters sorted by entity key. A cluster is emitted only
// when some positive source differs from some negative source. Detect checks
// ctx between items and returns ctx.Err() when it ends.
func (d *Detector) Detect(ctx context.Context, items []types.EvidenceItem) ([]types.ContradictionCluster, error) {
	tallies := make(map[string]*entityTally)

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range d.extractor.Extract(it.Text) {
			pol := d.classifier.Classify(m.Sentence)
			if pol == Neutral {
				continue
			}
			t := tallies[m.EntityKey]
			if t == nil {
				t = &entityTally{pos: map[string]bool{}, neg: map[string]bool{}}
				tallies[m.EntityKey] = t
			}
			if pol == Positive {
				t.pos[it.SourceID] = true
				t.posLines = appendExcerpt(t.posLines, m.Sentence)
			} else {
				t.neg[it.SourceID] = true
				t.negLines = appendExcerpt(t.negLines, m.Sentence)
			}
		}
	}

	clusters := make([]types.ContradictionCluster, 0)
	for key, t := range tallies {
		if !crossSource(t.pos, t.neg) {
			continue
		}
		excerpts := make([]string, 0, len(t.posLines)+len(t.negLines))
		for _, s := range append(append([]string{}, t.posLines...), t.negLines...) {
			excerpts = append(excerpts, truncate(s, d.maxExcerptLen))
		}
		clusters = append(clusters, types.ContradictionCluster{
			EntityKey:       key,
			PositiveSources: sortedKeys(t.pos),
			NegativeSources: sortedKeys(t.neg),
			SampleExcerpts:  excerpts,
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].EntityKey < clusters[j].EntityKey
	})
	return clusters, nil
}

// crossSource reports whether some positive source differs from some
// negative source.
func crossSource(pos, neg map[string]bool) bool {
	if len(pos) == 0 || len(neg) == 0 {
		return false
	}
	if len(pos) > 1 || len(neg) > 1 {
		return true
	}
	for p := range pos {
		return !neg[p]
	}
	return false
}

// appendExcerpt keeps the first excerptsPerPolarity distinct sentences.
func appendExcerpt(lines []string, s string) []string {
	if len(lines) >= excerptsPerPolarity {
		return lines
	}
	for _, l := range lines {
		if l == s {
			return lines
		}
	}
	return append(lines, s)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Passage is a contiguous excerpt of a Document.
type Passage struct {
	// Page is the page the passage starts on (0 if unknown).
	Page int `json:"page" yaml:"page"`

	// Text is the passage content.
	Text string `json:"text" yaml:"text"`
}

// Document is one source in the local corpus: a paper's metadata plus the
// passages that retrieval can return as evidence.
type Document struct {
	// SourceID is a slug identifying the paper (e.g. "2301.07041").
	SourceID string `json:"source_id" yaml:"source_id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year (0 if unknown).
	Year int `json:"year" yaml:"year"`

	// Venue is the journal or conference.
	Venue string `json:"venue" yaml:"venue"`

	Passages []Passage `json:"passages" yaml:"passages"`
}

// Citation formats a short reference: "Smith et al. (2020). Title. Venue".
func (d Document) Citation() string {
	var b strings.Builder
	switch len(d.Authors) {
	case 0:
	case 1:
		b.WriteString(d.Authors[0])
	default:
		b.WriteString(d.Authors[0] + " et al.")
	}
	if d.Year > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(%d)", d.Year)
	}
	if d.Title != "" {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(d.Title)
	}
	if d.Venue != "" {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(d.Venue)
	}
	if b.Len() == 0 {
		return d.SourceID
	}
	return b.String()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the remote retrieval collaborator. It turns a rewritten
// query into evidence items drawn from paper abstracts.
package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultMaxResults is used when the caller passes no limit.
const DefaultMaxResults = 20

// positionScore gives the item at index i of total a relevance in
// [0.1, 1.0] that falls linearly with rank.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// FormatTable writes evidence items as a human-readable table to w.
func FormatTable(items []types.EvidenceItem, w io.Writer) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No evidence found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-12s  %-40s  %-4s  %-6s  %s\n",
		"Rank", "ID", "Citation", "Year", "Score", "Excerpt")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, it := range items {
		year := ""
		if it.Year != nil {
			year = fmt.Sprintf("%d", *it.Year)
		}
		fmt.Fprintf(w, "%-4d  %-12s  %-40s  %-4s  %-6.2f  %s\n",
			i+1, it.ID, truncate(it.Citation, 40), year, it.Score, truncate(oneLine(it.Text), 60))
	}

	fmt.Fprintf(w, "\n%d results\n", len(items))
}

// FormatJSON writes evidence items as indented JSON to w.
func FormatJSON(items []types.EvidenceItem, w io.Writer) error {
	if items == nil {
		items = []types.EvidenceItem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

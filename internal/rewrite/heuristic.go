// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var (
	politePrefixRe = regexp.MustCompile(`(?i)^(?:please|kindly|could you|can you)\b[\s,]*`)
	whatIsRe       = regexp.MustCompile(`(?i)^what\s+(?:is|are)\s+(.+)$`)
	spaceBeforeEnd = regexp.MustCompile(`\s+([.?!])$`)
	terminalRunRe  = regexp.MustCompile(`([.?!])[.?!]+$`)

	yearSpanRe  = regexp.MustCompile(`\b((?:19|20)\d{2})\s*[-–]\s*((?:19|20)\d{2})\b`)
	yearWordsRe = regexp.MustCompile(`(?i)\b(?:between|from)\s+((?:19|20)\d{2})\s+(?:and|to|through)\s+((?:19|20)\d{2})\b`)
)

// Heuristic rewrites question without any network call. It strips polite
// filler, turns a leading "what is/are X" into "summarize X", collapses
// whitespace and normalizes terminal punctuation. An explicit year range in
// the question becomes a years filter. When nothing applies Rewritten equals
// Original.
func Heuristic(question string) types.RewriteResult {
	original := strings.TrimSpace(question)
	res := types.RewriteResult{
		Original:  original,
		Rewritten: original,
		Source:    types.RewriteHeuristic,
	}

	s := collapseSpace(original)
	for {
		stripped := politePrefixRe.ReplaceAllString(s, "")
		if stripped == s || stripped == "" {
			break
		}
		s = stripped
	}

	if m := whatIsRe.FindStringSubmatch(s); m != nil {
		subject := strings.TrimRight(strings.TrimSpace(m[1]), "?")
		if subject = strings.TrimSpace(subject); subject != "" {
			s = "summarize " + subject
		}
	}

	s = spaceBeforeEnd.ReplaceAllString(s, "$1")
	s = terminalRunRe.ReplaceAllString(s, "$1")

	if s != "" {
		res.Rewritten = s
	}
	res.Filters.Years = yearsIn(original)
	return res
}

// yearsIn finds the first explicit year range in s. Reversed ranges are
// ignored.
func yearsIn(s string) *types.YearRange {
	for _, re := range []*regexp.Regexp{yearWordsRe, yearSpanRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		yr := types.YearRange{Min: lo, Max: hi}
		if !yr.Valid() {
			return nil
		}
		return &yr
	}
	return nil
}

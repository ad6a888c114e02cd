// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// MalformedResponseError reports model output that could not be turned into
// a RewriteResult. The Rewriter never returns it; it triggers the heuristic.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed rewrite response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

var errNoObject = errors.New("no JSON object found")

// modelResponse is the shape requested by the prompt.
type modelResponse struct {
	Rewritten string       `json:"rewritten"`
	Filters   modelFilters `json:"filters"`
}

type modelFilters struct {
	Years      yearsField `json:"years"`
	Venues     stringList `json:"venues"`
	Fields     stringList `json:"fields"`
	Species    stringList `json:"species"`
	StudyTypes stringList `json:"study_types"`
	Outcomes   stringList `json:"outcomes"`
}

// yearsField accepts [min, max], [year], a bare year, or {"min":..,"max":..}.
// Any other shape is treated as absent.
type yearsField struct {
	r *types.YearRange
}

func (y *yearsField) UnmarshalJSON(data []byte) error {
	y.r = nil

	var pair []int
	if err := json.Unmarshal(data, &pair); err == nil {
		switch len(pair) {
		case 1:
			y.r = &types.YearRange{Min: pair[0], Max: pair[0]}
		case 2:
			y.r = &types.YearRange{Min: pair[0], Max: pair[1]}
		}
		return nil
	}

	var obj struct {
		Min *int `json:"min"`
		Max *int `json:"max"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Min != nil && obj.Max != nil {
		y.r = &types.YearRange{Min: *obj.Min, Max: *obj.Max}
		return nil
	}

	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		y.r = &types.YearRange{Min: single, Max: single}
	}
	return nil
}

// stringList accepts a JSON array or a single string. Non-string array
// elements are skipped.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = stringList{one}
		return nil
	}
	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		*s = nil
		return nil
	}
	out := make(stringList, 0, len(many))
	for _, v := range many {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	*s = out
	return nil
}

// parseResponse turns raw model text into a RewriteResult for original.
func parseResponse(original, raw string) (types.RewriteResult, error) {
	content := stripFences(raw)

	var resp modelResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		obj, ok := firstObject(content)
		if !ok {
			return types.RewriteResult{}, &MalformedResponseError{Raw: raw, Err: errNoObject}
		}
		resp = modelResponse{}
		if err := json.Unmarshal([]byte(obj), &resp); err != nil {
			return types.RewriteResult{}, &MalformedResponseError{Raw: raw, Err: err}
		}
	}

	rewritten := collapseSpace(resp.Rewritten)
	if rewritten == "" {
		return types.RewriteResult{}, &MalformedResponseError{Raw: raw, Err: errors.New("empty rewritten query")}
	}

	return types.RewriteResult{
		Original:  original,
		Rewritten: rewritten,
		Filters:   normalizeFilters(resp.Filters),
		Source:    types.RewriteLLM,
	}, nil
}

// stripFences removes a leading ``` or ```json line and a trailing ```.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced {...} substring of s. Braces inside
// JSON strings do not count.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func normalizeFilters(f modelFilters) types.FilterSet {
	out := types.FilterSet{
		Venues:     normalizeTerms(f.Venues),
		Fields:     normalizeTerms(f.Fields),
		Species:    normalizeTerms(f.Species),
		StudyTypes: normalizeTerms(f.StudyTypes),
		Outcomes:   normalizeTerms(f.Outcomes),
	}
	if f.Years.r != nil && f.Years.r.Valid() {
		yr := *f.Years.r
		out.Years = &yr
	}
	return out
}

// normalizeTerms trims and collapses each term, drops empties, and removes
// case-insensitive duplicates keeping the first spelling.
func normalizeTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = collapseSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

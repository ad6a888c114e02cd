// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1}  `))
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		found bool
	}{
		{"plain", `x {"a":1} y`, `{"a":1}`, true},
		{"nested", `{"a":{"b":2}} tail`, `{"a":{"b":2}}`, true},
		{"brace in string", `pre {"a":"}{"} post`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"say \"}\" now"}`, `{"a":"say \"}\" now"}`, true},
		{"unbalanced", `{"a": 1`, "", false},
		{"none", `no braces here`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstObject(tt.in)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponse_YearShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *types.YearRange
	}{
		{"pair", `{"rewritten":"q","filters":{"years":[2010,2012]}}`, &types.YearRange{Min: 2010, Max: 2012}},
		{"single in list", `{"rewritten":"q","filters":{"years":[2010]}}`, &types.YearRange{Min: 2010, Max: 2010}},
		{"bare year", `{"rewritten":"q","filters":{"years":2011}}`, &types.YearRange{Min: 2011, Max: 2011}},
		{"object", `{"rewritten":"q","filters":{"years":{"min":2001,"max":2003}}}`, &types.YearRange{Min: 2001, Max: 2003}},
		{"null", `{"rewritten":"q","filters":{"years":null}}`, nil},
		{"text", `{"rewritten":"q","filters":{"years":"recent"}}`, nil},
		{"reversed", `{"rewritten":"q","filters":{"years":[2012,2010]}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse("q", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Filters.Years)
		})
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	for _, raw := range []string{"", "nothing useful", `{"rewritten": 42}`, `{"filters": {}}`} {
		_, err := parseResponse("q", raw)
		var mal *MalformedResponseError
		assert.ErrorAs(t, err, &mal, "raw=%q", raw)
	}
}

func TestNormalizeTerms(t *testing.T) {
	got := normalizeTerms([]string{" Cell ", "cell", "", "Nature  Neuroscience", "CELL", "Neuron"})
	assert.Equal(t, []string{"Cell", "Nature Neuroscience", "Neuron"}, got)
	assert.Nil(t, normalizeTerms(nil))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contradict

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceEnd = regexp.MustCompile(`[.!?;]+(?:\s+|$)`)

// splitSentences breaks text at terminal punctuation followed by space.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// tokenize lowercases s and splits it on anything that is not a letter or
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// KeywordExtractor finds vocabulary entities in text by token matching.
type KeywordExtractor struct {
	entities []compiledEntity
}

type compiledEntity struct {
	key     string
	aliases [][]string
}

// NewKeywordExtractor compiles v's entities.
func NewKeywordExtractor(v Vocabulary) *KeywordExtractor {
	ke := &KeywordExtractor{}
	for _, e := range v.Entities {
		ce := compiledEntity{key: e.Key}
		for _, a := range append([]string{e.Key}, e.Aliases...) {
			if toks := tokenize(a); len(toks) > 0 {
				ce.aliases = append(ce.aliases, toks)
			}
		}
		ke.entities = append(ke.entities, ce)
	}
	return ke
}

// Extract returns one Mention per entity per sentence, in sentence order and
// vocabulary order within a sentence.
func (ke *KeywordExtractor) Extract(text string) []Mention {
	var out []Mention
	for _, sentence := range splitSentences(text) {
		toks := tokenize(sentence)
		for _, e := range ke.entities {
			if e.matches(toks) {
				out = append(out, Mention{EntityKey: e.key, Sentence: sentence})
			}
		}
	}
	return out
}

func (e compiledEntity) matches(toks []string) bool {
	for _, alias := range e.aliases {
		if containsRun(toks, alias) {
			return true
		}
	}
	return false
}

func containsRun(toks, run []string) bool {
	for i := 0; i+len(run) <= len(toks); i++ {
		match := true
		for j := range run {
			if toks[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// KeywordClassifier scores a sentence by counting cue words. A negator up to
// NegationWindow tokens before a cue flips it.
type KeywordClassifier struct {
	positive map[string]bool
	negative map[string]bool
	negators map[string]bool
}

// NewKeywordClassifier compiles v's cue lists.
func NewKeywordClassifier(v Vocabulary) *KeywordClassifier {
	return &KeywordClassifier{
		positive: wordSet(v.PositiveCues),
		negative: wordSet(v.NegativeCues),
		negators: wordSet(v.Negators),
	}
}

// Classify returns the sign of the cue sum.
func (kc *KeywordClassifier) Classify(sentence string) Polarity {
	toks := tokenize(sentence)
	score := 0
	for i, tok := range toks {
		var s int
		switch {
		case kc.positive[tok]:
			s = 1
		case kc.negative[tok]:
			s = -1
		default:
			continue
		}
		if kc.negatedAt(toks, i) {
			s = -s
		}
		score += s
	}
	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

func (kc *KeywordClassifier) negatedAt(toks []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-NegationWindow; j-- {
		if kc.negators[toks[j]] {
			return true
		}
	}
	return false
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		for _, tok := range tokenize(w) {
			set[tok] = true
		}
	}
	return set
}

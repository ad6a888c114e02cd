// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contradict

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Entity is a named thing whose mentions are tracked across sources.
type Entity struct {
	// Key is the canonical name reported in clusters (e.g. "PICALM").
	Key string `yaml:"key"`

	// Aliases are extra spellings. Matching is case-insensitive and
	// token-aligned; the key always matches.
	Aliases []string `yaml:"aliases,omitempty"`
}

// Vocabulary drives the keyword extractor and classifier.
type Vocabulary struct {
	Entities     []Entity `yaml:"entities"`
	PositiveCues []string `yaml:"positive_cues"`
	NegativeCues []string `yaml:"negative_cues"`

	// Negators flip a cue that follows within NegationWindow tokens.
	Negators []string `yaml:"negators"`
}

// NegationWindow is how many tokens before a cue are searched for a negator.
const NegationWindow = 3

// Validate checks that the vocabulary can classify anything at all.
func (v Vocabulary) Validate() error {
	if len(v.Entities) == 0 {
		return errors.New("vocabulary has no entities")
	}
	for i, e := range v.Entities {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("entity %d has an empty key", i)
		}
	}
	if len(v.PositiveCues) == 0 || len(v.NegativeCues) == 0 {
		return errors.New("vocabulary needs both positive and negative cues")
	}
	return nil
}

// LoadVocabulary reads a YAML vocabulary file.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("reading vocabulary: %w", err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// DefaultVocabulary covers common Alzheimer's disease genes and proteins
// with effect-direction cues.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Entities: []Entity{
			{Key: "PICALM"},
			{Key: "APOE", Aliases: []string{"APOE4", "APOE ε4", "apolipoprotein E"}},
			{Key: "TREM2"},
			{Key: "BIN1"},
			{Key: "CLU", Aliases: []string{"clusterin"}},
			{Key: "ABCA7"},
			{Key: "SORL1"},
			{Key: "CD33"},
			{Key: "APP", Aliases: []string{"amyloid precursor protein"}},
			{Key: "MAPT", Aliases: []string{"tau"}},
			{Key: "amyloid-beta", Aliases: []string{"amyloid beta", "Aβ", "abeta", "amyloid"}},
		},
		PositiveCues: []string{
			"increase", "increases", "increased", "increasing",
			"promote", "promotes", "promoted",
			"enhance", "enhances", "enhanced",
			"elevate", "elevates", "elevated",
			"upregulate", "upregulates", "upregulated",
			"accelerate", "accelerates", "accelerated",
			"exacerbate", "exacerbates", "exacerbated",
			"raise", "raises", "raised",
			"drive", "drives", "drove",
			"associated", "association", "linked",
		},
		NegativeCues: []string{
			"decrease", "decreases", "decreased", "decreasing",
			"reduce", "reduces", "reduced", "reducing",
			"inhibit", "inhibits", "inhibited",
			"suppress", "suppresses", "suppressed",
			"attenuate", "attenuates", "attenuated",
			"downregulate", "downregulates", "downregulated",
			"lower", "lowers", "lowered",
			"prevent", "prevents", "prevented",
			"protect", "protects", "protected", "protective",
		},
		Negators: []string{
			"not", "no", "never", "without", "neither", "nor", "cannot",
			"fail", "fails", "failed", "lack", "lacks", "lacked",
			"doesn", "didn", "isn", "wasn", "aren", "weren",
		},
	}
}

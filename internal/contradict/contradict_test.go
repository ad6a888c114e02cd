// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contradict

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func ev(id, source, text string) types.EvidenceItem {
	return types.EvidenceItem{ID: id, SourceID: source, Text: text}
}

func TestDetect_CrossSourceDisagreement(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "smith2020", "PICALM expression increases neuronal survival."),
		ev("2", "lee2022", "In our cohort PICALM expression reduces neuronal survival."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, clusters, 1)
	c := clusters[0]
	assert.Equal(t, "PICALM", c.EntityKey)
	assert.Equal(t, []string{"smith2020"}, c.PositiveSources)
	assert.Equal(t, []string{"lee2022"}, c.NegativeSources)
	assert.Equal(t, []string{
		"PICALM expression increases neuronal survival",
		"In our cohort PICALM expression reduces neuronal survival",
	}, c.SampleExcerpts)
}

func TestDetect_SingleSourceDisagreementIgnored(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "smith2020", "PICALM expression increases neuronal survival. Later, PICALM knockdown reduces survival."),
		ev("2", "lee2022", "BIN1 is expressed in microglia."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestDetect_SameSourceOnBothSidesStillCountsWithAnother(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "TREM2 variants increase risk. TREM2 agonists reduce plaque load."),
		ev("2", "B", "TREM2 signalling reduces inflammation."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"A"}, clusters[0].PositiveSources)
	assert.Equal(t, []string{"A", "B"}, clusters[0].NegativeSources)
	assert.LessOrEqual(t, len(clusters[0].SampleExcerpts), 4)
}

func TestDetect_NegationFlipsCue(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "CLU levels increased in patients."),
		ev("2", "B", "CLU levels were not increased in patients."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, clusters, 1)
	assert.Equal(t, "CLU", clusters[0].EntityKey)
	assert.Equal(t, []string{"B"}, clusters[0].NegativeSources)
}

func TestDetect_NeutralSentencesIgnored(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "SORL1 was sequenced in all samples."),
		ev("2", "B", "SORL1 loss increases amyloid production."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestDetect_AliasesMapToKey(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "Clusterin increases clearance."),
		ev("2", "B", "Clusterin inhibits clearance."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "CLU", clusters[0].EntityKey)
}

func TestDetect_SortedByEntityAndCappedExcerpts(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "TREM2 increases uptake. TREM2 increases phagocytosis. TREM2 increases migration."),
		ev("2", "B", "TREM2 reduces uptake. TREM2 reduces phagocytosis. TREM2 reduces migration."),
		ev("3", "A", "BIN1 increases tau spread."),
		ev("4", "C", "BIN1 deletion reduces tau spread."),
	}

	clusters, err := NewDetector().Detect(context.Background(), items)
	require.NoError(t, err)

	var keys []string
	for _, c := range clusters {
		keys = append(keys, c.EntityKey)
		assert.LessOrEqual(t, len(c.SampleExcerpts), 4)
	}
	assert.Equal(t, []string{"BIN1", "MAPT", "TREM2"}, keys)
	assert.Len(t, clusters[2].SampleExcerpts, 4)
	assert.Equal(t, "TREM2 increases uptake", clusters[2].SampleExcerpts[0])
	assert.Equal(t, "TREM2 reduces uptake", clusters[2].SampleExcerpts[2])
}

func TestDetect_TruncatesExcerpts(t *testing.T) {
	long := "APOE4 increases " + strings.Repeat("very ", 40) + "much risk."
	items := []types.EvidenceItem{
		ev("1", "A", long),
		ev("2", "B", "APOE4 lowers risk."),
	}

	clusters, err := NewDetector(WithMaxExcerptLen(20)).Detect(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, clusters, 1)
	first := clusters[0].SampleExcerpts[0]
	assert.LessOrEqual(t, utf8.RuneCountInString(first), 20)
	assert.True(t, strings.HasSuffix(first, "…"))
	assert.Equal(t, "APOE4 lowers risk", clusters[0].SampleExcerpts[1])
}

func TestDetect_Deterministic(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "PICALM increases clearance. APP processing is elevated."),
		ev("2", "B", "PICALM reduces clearance. APP processing is reduced."),
		ev("3", "C", "CD33 suppresses uptake."),
		ev("4", "D", "CD33 enhances uptake."),
	}

	d := NewDetector()
	first, err := d.Detect(context.Background(), items)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.Detect(context.Background(), items)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDetect_Empty(t *testing.T) {
	clusters, err := NewDetector().Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector().Detect(ctx, []types.EvidenceItem{ev("1", "A", "PICALM increases risk.")})
	assert.ErrorIs(t, err, context.Canceled)
}

type fixedClassifier map[string]Polarity

func (f fixedClassifier) Classify(sentence string) Polarity { return f[sentence] }

func TestDetect_PluggableClassifier(t *testing.T) {
	items := []types.EvidenceItem{
		ev("1", "A", "PICALM alpha"),
		ev("2", "B", "PICALM beta"),
	}
	d := NewDetector(WithClassifier(fixedClassifier{"PICALM alpha": Negative, "PICALM beta": Positive}))

	clusters, err := d.Detect(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"B"}, clusters[0].PositiveSources)
	assert.Equal(t, []string{"A"}, clusters[0].NegativeSources)
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`entities:
  - key: GRN
    aliases: [progranulin]
positive_cues: [raises]
negative_cues: [lowers]
negators: [not]
`), 0o644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, "GRN", v.Entities[0].Key)

	items := []types.EvidenceItem{
		ev("1", "A", "Progranulin raises lysosomal activity."),
		ev("2", "B", "Progranulin does not raise activity; GRN lowers it."),
	}
	clusters, err := NewDetector(WithVocabulary(v)).Detect(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "GRN", clusters[0].EntityKey)
}

func TestLoadVocabulary_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadVocabulary(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positive_cues: [up]\n"), 0o644))
	_, err = LoadVocabulary(path)
	assert.ErrorContains(t, err, "no entities")
}

func TestKeywordClassifier(t *testing.T) {
	kc := NewKeywordClassifier(DefaultVocabulary())
	tests := []struct {
		sentence string
		want     Polarity
	}{
		{"PICALM increases clearance", Positive},
		{"PICALM reduces clearance", Negative},
		{"PICALM did not increase clearance", Negative},
		{"PICALM failed to significantly reduce clearance", Positive},
		{"no PICALM effect was seen on the measured increase", Positive},
		{"PICALM was measured", Neutral},
		{"PICALM increases uptake but reduces clearance", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			assert.Equal(t, tt.want, kc.Classify(tt.sentence))
		})
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package diversity measures how much redundancy curation removed: item and
// source counts before and after, score spread over the candidates, and the
// Shannon entropy of the per-source distribution.
package diversity

import (
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Analyze compares the candidate batch with the selected subset. It is pure
// and deterministic. Score statistics are nil when there are no candidates.
func Analyze(candidates, selected []types.EvidenceItem) types.DiversityStats {
	before := sourceCounts(candidates)
	after := sourceCounts(selected)

	ds := types.DiversityStats{
		CandidateCount:      len(candidates),
		SelectedCount:       len(selected),
		PerSourceCounts:     after,
		UniqueSourcesBefore: len(before),
		UniqueSourcesAfter:  len(after),
		SourceEntropyBefore: entropy(before, len(candidates)),
		SourceEntropyAfter:  entropy(after, len(selected)),
	}

	if len(candidates) == 0 {
		return ds
	}
	scores := make([]float64, len(candidates))
	for i, it := range candidates {
		scores[i] = it.Score
	}
	// Errors only occur for empty input, excluded above.
	lo, _ := stats.Min(scores)
	hi, _ := stats.Max(scores)
	mean, _ := stats.Mean(scores)
	sd, _ := stats.StandardDeviation(scores)
	ds.ScoreMin, ds.ScoreMax, ds.ScoreMean, ds.ScoreStdDev = &lo, &hi, &mean, &sd
	return ds
}

func sourceCounts(items []types.EvidenceItem) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.SourceID]++
	}
	return counts
}

// entropy returns the Shannon entropy in nats of the count distribution.
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := make([]float64, len(keys))
	for i, k := range keys {
		p[i] = float64(counts[k]) / float64(total)
	}
	return stat.Entropy(p)
}

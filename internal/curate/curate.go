// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package curate reduces a raw retrieval batch to a bounded, ranked and
// source-diverse evidence set.
//
// The steps run in a fixed order: deduplicate by ID, drop items below the
// score cutoff, stable-sort by descending score, cap items per source, then
// truncate to MaxSources. Items are never mutated; a dropped item moves to
// Discarded.
package curate

import (
	"sort"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Curate runs one curation pass over raw. It fails only when params are
// invalid. raw is not modified.
func Curate(raw []types.EvidenceItem, params types.CurationParameters) (types.CurationResult, error) {
	if err := params.Validate(); err != nil {
		return types.CurationResult{}, err
	}

	res := types.CurationResult{
		Selected:  make([]types.EvidenceItem, 0, len(raw)),
		Discarded: make([]types.EvidenceItem, 0),
	}
	res.Stats.Input = len(raw)

	unique, dups := dedupe(raw)
	res.Discarded = append(res.Discarded, dups...)
	res.Stats.Duplicates = len(dups)
	res.Stats.AfterDedup = len(unique)

	kept, below := applyCutoff(unique, params.ScoreCutoff)
	res.Discarded = append(res.Discarded, below...)
	res.Stats.BelowCutoff = len(below)
	res.Stats.AfterCutoff = len(kept)

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	capped, over := capPerSource(kept, params.PerSourceCap)
	res.Discarded = append(res.Discarded, over...)
	res.Stats.OverSourceCap = len(over)
	res.Stats.AfterSourceCap = len(capped)

	if params.MaxSources > 0 && len(capped) > params.MaxSources {
		res.Discarded = append(res.Discarded, capped[params.MaxSources:]...)
		res.Stats.OverMaxSources = len(capped) - params.MaxSources
		capped = capped[:params.MaxSources]
	}

	res.Selected = append(res.Selected, capped...)
	res.Stats.Selected = len(res.Selected)
	return res, nil
}

// dedupe keeps the first occurrence of each item key.
func dedupe(items []types.EvidenceItem) (unique, dups []types.EvidenceItem) {
	seen := make(map[string]bool, len(items))
	unique = make([]types.EvidenceItem, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if seen[k] {
			dups = append(dups, it)
			continue
		}
		seen[k] = true
		unique = append(unique, it)
	}
	return unique, dups
}

func applyCutoff(items []types.EvidenceItem, cutoff float64) (kept, below []types.EvidenceItem) {
	kept = make([]types.EvidenceItem, 0, len(items))
	for _, it := range items {
		if it.Score < cutoff {
			below = append(below, it)
			continue
		}
		kept = append(kept, it)
	}
	return kept, below
}

// capPerSource walks sorted items and drops any item whose source already
// has limit accepted items. A zero limit accepts everything.
func capPerSource(sorted []types.EvidenceItem, limit int) (kept, over []types.EvidenceItem) {
	if limit <= 0 {
		return sorted, nil
	}
	counts := make(map[string]int)
	kept = make([]types.EvidenceItem, 0, len(sorted))
	for _, it := range sorted {
		if counts[it.SourceID] >= limit {
			over = append(over, it)
			continue
		}
		counts[it.SourceID]++
		kept = append(kept, it)
	}
	return kept, over
}

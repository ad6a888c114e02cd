// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/curate"
	"github.com/pdiddy/evidence-engine/internal/diversity"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var curateCmd = &cobra.Command{
	Use:   "curate [evidence-file]",
	Short: "Curate a saved evidence list and report diversity and contradictions",
	Long: `Curate reads a YAML or JSON list of evidence items (for example the output
of "knowledge query --json" or a knowledge export), applies the configured
curation parameters, and prints the curation result, diversity statistics,
and contradiction clusters as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runCurate,
}

func init() {
	curateCmd.Flags().Float64("score-cutoff", -1, "discard items scoring below this (overrides config)")
	curateCmd.Flags().Int("per-source-cap", -1, "maximum items per source, 0 = unlimited (overrides config)")
	curateCmd.Flags().Int("max-sources", -1, "maximum selected items (overrides config)")

	rootCmd.AddCommand(curateCmd)
}

type curateReport struct {
	Curation       types.CurationResult         `yaml:"curation"`
	Diversity      types.DiversityStats         `yaml:"diversity"`
	Contradictions []types.ContradictionCluster `yaml:"contradictions"`
}

func runCurate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	params := cfg.Curation
	if v, _ := cmd.Flags().GetFloat64("score-cutoff"); v >= 0 {
		params.ScoreCutoff = v
	}
	if v, _ := cmd.Flags().GetInt("per-source-cap"); v >= 0 {
		params.PerSourceCap = v
	}
	if v, _ := cmd.Flags().GetInt("max-sources"); v >= 0 {
		params.MaxSources = v
	}

	items, err := readEvidence(args[0])
	if err != nil {
		return err
	}

	res, err := curate.Curate(items, params)
	if err != nil {
		return err
	}

	det, err := buildDetector(cfg.Contradiction)
	if err != nil {
		return err
	}
	clusters, err := det.Detect(context.Background(), res.Selected)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(curateReport{
		Curation:       res,
		Diversity:      diversity.Analyze(items, res.Selected),
		Contradictions: clusters,
	}); err != nil {
		return err
	}
	return enc.Close()
}

func readEvidence(path string) ([]types.EvidenceItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading evidence: %w", err)
	}

	var items []types.EvidenceItem
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &items)
	} else {
		err = yaml.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return items, nil
}

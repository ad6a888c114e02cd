// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/export"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run a question through the full evidence pipeline",
	Long: `Ask rewrites the question, retrieves evidence, curates it, and reports
source diversity and contradictory claims. Progress is printed to stderr.
Interrupting the command cancels the query, including any retry wait.

With --export the session record is written to the export directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("backend", "", "retrieval backend: knowledge or semantic_scholar (overrides config)")
	askCmd.Flags().Bool("json", false, "print the session record as JSON")
	askCmd.Flags().Bool("export", false, "write the session record to the export directory")
	askCmd.Flags().Bool("quiet", false, "suppress progress output")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		viper.Set("search.backend", backend)
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var progress io.Writer = os.Stderr
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		progress = nil
	}

	c, err := buildComponents(ctx, cfg, progress)
	if err != nil {
		return err
	}
	defer c.Close()

	future, err := c.engine.Submit(ctx, types.Question(strings.Join(args, " ")))
	if err != nil {
		return err
	}
	res, err := future.Await(context.Background())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("query cancelled")
		}
		return err
	}

	rec := export.FromResult(res)
	if doExport, _ := cmd.Flags().GetBool("export"); doExport {
		path, err := export.WriteFile(rec, cfg.Export)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Session written to %s\n", path)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return export.Encode(os.Stdout, rec, types.ExportJSON)
	}
	printResult(os.Stdout, res)
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Query %s\n", res.QueryID)
	fmt.Fprintf(w, "Rewritten (%s): %s\n", res.Rewrite.Source, res.Rewrite.Rewritten)
	if y := res.Rewrite.Filters.Years; y != nil {
		fmt.Fprintf(w, "Years: %d-%d\n", y.Min, y.Max)
	}
	fmt.Fprintln(w)

	search.FormatTable(res.Curation.Selected, w)

	st := res.Curation.Stats
	fmt.Fprintf(w, "\ncuration: %d in, %d selected (duplicates %d, below cutoff %d, over source cap %d, over max %d)\n",
		st.Input, st.Selected, st.Duplicates, st.BelowCutoff, st.OverSourceCap, st.OverMaxSources)

	d := res.Diversity
	fmt.Fprintf(w, "diversity: sources %d -> %d, entropy %.3f -> %.3f",
		d.UniqueSourcesBefore, d.UniqueSourcesAfter, d.SourceEntropyBefore, d.SourceEntropyAfter)
	if ratio, ok := d.RedundancyRatio(); ok {
		fmt.Fprintf(w, ", redundancy ratio %.2f", ratio)
	}
	fmt.Fprintln(w)

	if len(res.Contradictions) == 0 {
		fmt.Fprintln(w, "contradictions: none")
		return
	}
	fmt.Fprintf(w, "contradictions: %d\n", len(res.Contradictions))
	for _, c := range res.Contradictions {
		fmt.Fprintf(w, "  %s: + %s / - %s\n", c.EntityKey,
			strings.Join(c.PositiveSources, ", "), strings.Join(c.NegativeSources, ", "))
		for _, ex := range c.SampleExcerpts {
			fmt.Fprintf(w, "      %q\n", ex)
		}
	}
}

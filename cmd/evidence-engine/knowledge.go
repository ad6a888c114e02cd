// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/knowledge"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the local corpus (ingest, query, export)",
	Long: `Knowledge manages a local SQLite index of passages built from the corpus
documents under knowledge/corpus/. Use subcommands to index documents, query
passages, or export them.`,
}

// --- ingest subcommand ---

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index corpus documents into the knowledge base",
	Long: `Ingest reads document YAML files from knowledge/corpus/, indexes their
passages in a SQLite database with FTS5, and writes an export file.
Unchanged documents are skipped on subsequent runs.`,
	RunE: runKnowledgeIngest,
}

func runKnowledgeIngest(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var knowledgeQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search passages with full-text search and filters",
	Long: `Query searches the passage index. Every word of the text may match;
results are ranked by BM25. Year and venue flags filter by the source
document. Without text, passages are listed in corpus order.

Use --trace with a passage ID to view the surrounding passages.`,
	RunE: runKnowledgeQuery,
}

func runKnowledgeQuery(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if traceID, _ := cmd.Flags().GetString("trace"); traceID != "" {
		text, err := store.Trace(context.Background(), traceID)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if opts.Query == "" && opts.SourceID == "" && opts.Years == nil && len(opts.Venues) == 0 {
		return fmt.Errorf("query or filter required: provide search text, --source, --from/--to, or --venue")
	}

	results, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(results, os.Stdout)
	}
	search.FormatTable(results, os.Stdout)
	return nil
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export indexed passages to YAML or JSON",
	Long: `Export writes every indexed passage (or a filtered subset) to
knowledge/index/export.yaml or export.json. Supports the same filter
flags as query for partial exports.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to knowledge/index/export.yaml")
	case "json":
		if err := store.ExportJSON(context.Background(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to knowledge/index/export.json")
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- shared helpers ---

func openStore(cmd *cobra.Command) (*knowledge.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	kb := cfg.KnowledgeBase
	if dir, _ := cmd.Flags().GetString("knowledge-dir"); dir != "" {
		kb.KnowledgeDir = dir
	}
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		kb.MaxResults = n
	}
	return knowledge.NewStore(kb)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) (knowledge.QueryOptions, error) {
	text, _ := cmd.Flags().GetString("query")
	if text == "" && len(args) > 0 {
		text = strings.Join(args, " ")
	}
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	venues, _ := cmd.Flags().GetStringSlice("venue")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := knowledge.QueryOptions{
		Query:      knowledge.MatchExpression(text),
		Venues:     venues,
		SourceID:   source,
		MaxResults: limit,
	}
	if from > 0 || to > 0 {
		y := types.YearRange{Min: from, Max: to}
		if to == 0 {
			y.Max = 9999
		}
		if !y.Valid() {
			return opts, fmt.Errorf("--from %d is after --to %d", from, to)
		}
		opts.Years = &y
	}
	return opts, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "full-text search text")
	cmd.Flags().Int("from", 0, "earliest publication year")
	cmd.Flags().Int("to", 0, "latest publication year")
	cmd.Flags().StringSlice("venue", nil, "filter by venue (repeatable)")
	cmd.Flags().String("source", "", "filter by source document ID")
	cmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	knowledgeCmd.PersistentFlags().String("knowledge-dir", "", "base directory for knowledge (contains corpus/, index/)")
	knowledgeCmd.PersistentFlags().Int("max-results", 0, "maximum number of query results")

	addFilterFlags(knowledgeQueryCmd)
	knowledgeQueryCmd.Flags().String("trace", "", "show surrounding passages for a passage ID")
	knowledgeQueryCmd.Flags().Bool("json", false, "output results as JSON")

	addFilterFlags(knowledgeExportCmd)
	knowledgeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	// Wire subcommands.
	knowledgeCmd.AddCommand(knowledgeIngestCmd)
	knowledgeCmd.AddCommand(knowledgeQueryCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}

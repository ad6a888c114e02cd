// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [question]",
	Short: "Show the retrieval query and filters derived from a question",
	Long: `Rewrite runs only the query rewriter. With a model provider configured the
question is rewritten by the model; otherwise, or when the model fails, the
heuristic rewrite is used. The result is printed as YAML.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx := context.Background()

		rw, err := buildRewriter(ctx, cfg.Rewrite)
		if err != nil {
			return err
		}
		res, err := rw.Rewrite(ctx, types.Question(strings.Join(args, " ")))
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
}

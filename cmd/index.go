package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/app"
)

func indexCMD() *cobra.Command {
	var cfgPath string
	var dir string
	var index = &cobra.Command{
		Use:   "index",
		Short: "Load and index the knowledge directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.General.KnowledgeDir = dir
			}
			ctx := context.Background()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			added, err := a.IndexKnowledge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d new chunks, %d total\n", added, a.Vector.Count())
			return nil
		},
	}
	index.Flags().StringVar(&dir, "dir", "", "knowledge directory (defaults to general.knowledge_dir)")
	index.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return index
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/questor-ai/questor/config"
	srv "github.com/questor-ai/questor/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(context.Background(), cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

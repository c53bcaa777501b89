package main

import (
	"github.com/spf13/cobra"

	"github.com/questor-ai/questor/config"
	srv "github.com/questor-ai/questor/internal/server"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var direction string
	var steps int
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run checkpoint store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			var dsn string
			if cfg.Storage.Postgres.Host != "" || cfg.Storage.Postgres.URL != "" {
				dsn = cfg.Storage.Postgres.DSN()
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrate
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/app"
)

func askCMD() *cobra.Command {
	var cfgPath string
	var sessionID string
	var approve bool
	var multiQuery bool
	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if approve {
				cfg.Workflow.RequireApprove = true
			}
			ctx := context.Background()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			if cfg.General.KnowledgeDir != "" {
				if _, err := a.IndexKnowledge(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "indexing failed, local retrieval starts empty: %v\n", err)
				}
			}

			if sessionID == "" {
				sessionID = uuid.New().String()
			}
			var mq *bool
			if cmd.Flags().Changed("multi-query") {
				mq = &multiQuery
			}
			res, err := a.Ask(ctx, sessionID, strings.Join(args, " "), mq)
			if err != nil {
				return err
			}

			// Approval loop: show the pending action and resume on
			// confirmation.
			reader := bufio.NewReader(os.Stdin)
			for res.Interrupted {
				fmt.Printf("pending: %s\napprove? [y/N] ", res.State.PendingAction)
				line, _ := reader.ReadString('\n')
				if strings.TrimSpace(strings.ToLower(line)) != "y" {
					fmt.Println("aborted; resume later with the same session id:", sessionID)
					return nil
				}
				res, err = a.Resume(ctx, sessionID)
				if err != nil {
					return err
				}
			}

			fmt.Println(res.State.FinalAnswer)
			if len(res.State.Evidence) > 0 {
				fmt.Println("\nsources:")
				for _, ev := range res.State.Evidence {
					fmt.Printf("  - %s\n", ev.Source)
				}
			}
			return nil
		},
	}
	ask.Flags().StringVar(&sessionID, "session", "", "session id (defaults to a new one)")
	ask.Flags().BoolVar(&approve, "approve", false, "pause for approval before each search")
	ask.Flags().BoolVar(&multiQuery, "multi-query", false, "override the configured query expansion setting")
	ask.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ask
}

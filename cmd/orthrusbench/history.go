package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/results"
)

func historyCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := results.OpenHistory(dbPath)
			if err != nil {
				return err
			}
			defer h.Close()
			entries, err := h.List(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-30s preset=%-7s nclients=%-3d sha=%.12s series=%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Tag, e.Preset, e.NClients,
					e.SHA, strings.Join(e.Series, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "history-db", "results/history.db", "sqlite database recording completed sweeps")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")
	return cmd
}

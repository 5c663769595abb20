package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/clientlog"
)

// memoryCmd recomputes the RSS ratio summary from already-collected
// memory status logs, without re-running any server.
func memoryCmd() *cobra.Command {
	var (
		vanillaLog     string
		seiLog         string
		orthrusLog     string
		orthrusSyncLog string
		rbvLogs        []string
	)
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Summarize VmRSS samples as ratios against vanilla",
		RunE: func(cmd *cobra.Command, args []string) error {
			vanilla, err := clientlog.ParseMemoryFile(vanillaLog)
			if err != nil {
				return err
			}
			orthrus, err := clientlog.ParseMemoryFile(orthrusLog)
			if err != nil {
				return err
			}
			var rbv clientlog.MemUsage
			for _, path := range rbvLogs {
				u, err := clientlog.ParseMemoryFile(path)
				if err != nil {
					return err
				}
				rbv = rbv.Add(u)
			}

			var sei, orthrusSync *clientlog.MemUsage
			if seiLog != "" {
				u, err := clientlog.ParseMemoryFile(seiLog)
				if err != nil {
					return err
				}
				sei = &u
			}
			if orthrusSyncLog != "" {
				u, err := clientlog.ParseMemoryFile(orthrusSyncLog)
				if err != nil {
					return err
				}
				orthrusSync = &u
			}

			section := func(title string, pick func(clientlog.MemUsage) float64) {
				fmt.Printf("---------- results(%s) ----------\n", title)
				base := pick(vanilla)
				fmt.Printf("ratio (Orthrus(async) vs Vanilla): %.6g\n", pick(orthrus)/base)
				if orthrusSync != nil {
					fmt.Printf("ratio (Orthrus(sync) vs Vanilla): %.6g\n", pick(*orthrusSync)/base)
				}
				if sei != nil {
					fmt.Printf("ratio (SEI vs Vanilla): %.6g\n", pick(*sei)/base)
				}
				fmt.Printf("ratio (RBV vs Vanilla): %.6g\n", pick(rbv)/base)
			}
			section("peak", func(u clientlog.MemUsage) float64 { return float64(u.PeakKB) })
			section("avg", func(u clientlog.MemUsage) float64 { return float64(u.AvgKB) })
			return nil
		},
	}
	cmd.Flags().StringVar(&vanillaLog, "input-vanilla", "", "vanilla memory status log")
	cmd.Flags().StringVar(&seiLog, "input-sei", "", "sei memory status log")
	cmd.Flags().StringVar(&orthrusLog, "input-orthrus", "", "orthrus memory status log")
	cmd.Flags().StringVar(&orthrusSyncLog, "input-orthrus-sync", "", "orthrus sync memory status log")
	cmd.Flags().StringArrayVar(&rbvLogs, "input-rbv", nil, "rbv memory status log, repeatable; usages are summed")
	cmd.MarkFlagRequired("input-vanilla")
	cmd.MarkFlagRequired("input-orthrus")
	cmd.MarkFlagRequired("input-rbv")
	return cmd
}

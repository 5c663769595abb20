package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/report"
)

// chartCmd re-renders CSV and SVG outputs from a sweep JSON document,
// so plots can be regenerated without re-running the sweep.
func chartCmd() *cobra.Command {
	var (
		csvOut string
		svgOut string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "chart SWEEP_JSON",
		Short: "Re-render chart and table from a sweep document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := report.LoadJSON(args[0])
			if err != nil {
				return err
			}
			if csvOut == "" && svgOut == "" {
				base := strings.TrimSuffix(args[0], ".json")
				csvOut = base + ".csv"
				svgOut = base + ".svg"
			}
			if csvOut != "" {
				if err := doc.WriteCSV(csvOut); err != nil {
					return err
				}
			}
			if svgOut != "" {
				if title == "" {
					title = fmt.Sprintf("memcached throughput vs rps (preset=%s, nclients=%d)",
						doc.Preset, doc.NClients)
				}
				if err := doc.WriteSVG(svgOut, title, "rps (client arg; UPDATE/GET only)", "Throughput (ops/s)"); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvOut, "csv", "", "CSV output path")
	cmd.Flags().StringVar(&svgOut, "svg", "", "SVG output path")
	cmd.Flags().StringVar(&title, "title", "", "chart title")
	return cmd
}

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/clientlog"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse CLIENT_LOG...",
		Short: "Parse client logs and print the records as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := map[string][]clientlog.Record{}
			for _, path := range args {
				recs, err := clientlog.ParseFile(path)
				if err != nil {
					return err
				}
				out[path] = recs
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

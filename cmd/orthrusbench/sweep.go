package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/bench"
	"github.com/aoikida/Orthrus/env"
)

func sweepCmd() *cobra.Command {
	var flags compareFlags
	var (
		rpsCSV      string
		variantsCSV string
		repeats     int
		tagPrefix   string
		outTag      string
		resume      bool
		force       bool
		historyPath string
		bucket      string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep client rps across variants and plot throughput",
		Long: "Runs the comparison once per (rps, sei flavor, repeat) point, " +
			"aggregates repeats by median and writes the series as JSON, CSV " +
			"and an SVG chart. Points whose artifacts already exist are " +
			"reused unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("preset") {
				base.Preset = "fair4c"
			}

			o := bench.DefaultSweepOptions()
			o.Base = base
			o.Repeats = repeats
			o.TagPrefix = tagPrefix
			o.OutTag = outTag
			o.Resume = resume
			o.Force = force
			o.HistoryPath = historyPath
			o.StorageBucket = bucket

			o.RPSList = nil
			for _, s := range splitCSV(rpsCSV) {
				v, err := strconv.Atoi(s)
				if err != nil {
					return errors.Wrapf(err, "bad rps value %q", s)
				}
				o.RPSList = append(o.RPSList, v)
			}
			o.SEIVariants = splitCSV(variantsCSV)

			return bench.Sweep(cmd.Context(), o)
		},
	}

	flags.register(cmd.Flags())
	// The sweep sets rps and the flavor per point.
	cmd.Flags().MarkHidden("rps")
	cmd.Flags().MarkHidden("sei-variants")
	cmd.Flags().MarkHidden("tag")

	cmd.Flags().StringVar(&rpsCSV, "rps-list", "0,1000,2000,4000,8000,12000,16000", "comma-separated rps values to sweep")
	cmd.Flags().StringVar(&variantsCSV, "sweep-sei-variants", "er2,er5,er10,dynamicNway,dynamicCore", "comma-separated SEI flavors to sweep")
	cmd.Flags().IntVar(&repeats, "repeats", 1, "repeats per point, aggregated by median")
	cmd.Flags().StringVar(&tagPrefix, "tag-prefix", "", "prefix for per-point tags (default sweep_rps.<preset>.<timestamp>)")
	cmd.Flags().StringVar(&outTag, "out-tag", "", "tag for aggregated outputs (default the tag prefix)")
	cmd.Flags().BoolVar(&resume, "resume", true, "reuse points whose artifacts already exist")
	cmd.Flags().BoolVar(&force, "force", false, "re-run every point even if artifacts exist")
	cmd.Flags().StringVar(&historyPath, "history-db", "", "sqlite database recording completed sweeps")
	cmd.Flags().StringVar(&bucket, "bucket", env.StorageBucket, "GCS bucket to mirror sweep artifacts to")
	return cmd
}

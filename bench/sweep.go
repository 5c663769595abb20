package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/aoikida/Orthrus/common"
	"github.com/aoikida/Orthrus/report"
	"github.com/aoikida/Orthrus/results"
	"github.com/aoikida/Orthrus/variants"
)

// SweepOptions drives a rate sweep: the cross product of rps values,
// SEI flavors, and repeats, each executed as one comparison run.
type SweepOptions struct {
	Base Options // template for each point; RPS, SEIVariants and Tag are set per point

	RPSList     []int
	SEIVariants []string
	Repeats     int

	TagPrefix string
	OutTag    string

	Resume bool
	Force  bool

	HistoryPath   string
	StorageBucket string
}

func DefaultSweepOptions() SweepOptions {
	base := DefaultOptions()
	base.Preset = "fair4c"
	return SweepOptions{
		Base:        base,
		RPSList:     []int{0, 1000, 2000, 4000, 8000, 12000, 16000},
		SEIVariants: []string{"er2", "er5", "er10", "dynamicNway", "dynamicCore"},
		Repeats:     1,
		Resume:      true,
	}
}

func (o *SweepOptions) validate() error {
	if o.Repeats <= 0 {
		return &ConfigError{Option: "repeats", Reason: "must be >= 1"}
	}
	if len(o.RPSList) == 0 {
		return &ConfigError{Option: "rps-list", Reason: "must be non-empty"}
	}
	for _, rps := range o.RPSList {
		if rps < 0 {
			return &ConfigError{Option: "rps-list", Reason: "values must be >= 0"}
		}
	}
	var err error
	if o.SEIVariants, err = normalizeList(o.SEIVariants); err != nil {
		return err
	}
	if o.TagPrefix == "" {
		o.TagPrefix = fmt.Sprintf("sweep_rps.%s.%s", o.Base.Preset, time.Now().Format("20060102-150405"))
	}
	if o.TagPrefix, err = results.SanitizeTag(o.TagPrefix); err != nil {
		return err
	}
	if o.OutTag == "" {
		o.OutTag = o.TagPrefix
	}
	o.OutTag, err = results.SanitizeTag(o.OutTag)
	return err
}

func normalizeList(vs []string) ([]string, error) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		canon, err := variants.NormalizeSEI(v)
		if err != nil {
			return nil, err
		}
		out = append(out, canon)
	}
	if len(out) == 0 {
		return nil, &ConfigError{Option: "sei-variants", Reason: "at least one variant is required"}
	}
	return out, nil
}

// pointTag names one point's artifacts inside the sweep.
func pointTag(prefix string, rps int, variant string, repeat int) string {
	return fmt.Sprintf("%s.rps%d.sei%s.r%d", prefix, rps, variant, repeat)
}

// resumable reports whether a persisted point can stand in for a
// fresh run. A point recorded without the sync variant cannot serve a
// sweep that wants it.
func resumable(doc results.PointDoc, orthrusSync bool) bool {
	required := []string{"vanilla", "sei", "orthrus", "rbv"}
	if orthrusSync {
		required = append(required, "orthrus_sync")
	}
	return doc.Complete(required)
}

func runFromPoint(doc results.PointDoc, rps int, variant string, repeat int, tag, pointJSON string, resumed bool) results.Run {
	run := results.Run{
		RPS:        rps,
		SEIVariant: variant,
		Repeat:     repeat,
		Tag:        tag,
		PointJSON:  pointJSON,
		Resumed:    resumed,
		Vanilla:    doc["vanilla"].Throughput,
		SEI:        doc["sei"].Throughput,
		Orthrus:    doc["orthrus"].Throughput,
		RBV:        doc["rbv"].Throughput,
	}
	if rec, ok := doc["orthrus_sync"]; ok {
		v := rec.Throughput
		run.OrthrusSync = &v
	}
	return run
}

// Sweep executes every configured point, reusing persisted artifacts
// where resumption allows, and writes the aggregated series as JSON,
// CSV and SVG.
func Sweep(ctx context.Context, o SweepOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	store, err := results.NewStore(o.Base.ResultsDir)
	if err != nil {
		return err
	}

	var runs []results.Run
	total := len(o.RPSList) * len(o.SEIVariants) * o.Repeats
	done := 0
	for _, rps := range o.RPSList {
		for _, variant := range o.SEIVariants {
			for r := 1; r <= o.Repeats; r++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				tag := pointTag(o.TagPrefix, rps, variant, r)
				done++

				if !o.Force && o.Resume {
					doc, err := store.LoadPoint(tag)
					if err == nil && resumable(doc, o.Base.OrthrusSync) {
						log.WithFields(log.Fields{"tag": tag, "progress": fmt.Sprintf("%d/%d", done, total)}).
							Info("reusing existing point")
						runs = append(runs, runFromPoint(doc, rps, variant, r, tag, store.PointPath(tag), true))
						continue
					}
					if err != nil && !errors.Is(err, results.ErrMissingArtifact) {
						return err
					}
				}

				log.WithFields(log.Fields{
					"rps": rps, "sei_variant": variant, "repeat": r,
					"progress": fmt.Sprintf("%d/%d", done, total),
				}).Info("running point")

				opts := o.Base
				opts.RPS = rps
				opts.RPSPerThread = nil
				opts.SEIVariants = []string{variant}
				opts.Tag = tag
				engine, err := New(opts)
				if err != nil {
					return err
				}
				if err := engine.Run(); err != nil {
					return errors.Wrapf(err, "point %s", tag)
				}

				doc, err := store.LoadPoint(tag)
				if err != nil {
					return err
				}
				runs = append(runs, runFromPoint(doc, rps, variant, r, tag, store.PointPath(tag), false))
			}
		}
	}

	series, err := aggregateRuns(o, runs)
	if err != nil {
		return err
	}
	doc := buildSweepDoc(o, runs, series)

	jsonPath := store.SweepPath(o.OutTag, "json")
	csvPath := store.SweepPath(o.OutTag, "csv")
	svgPath := store.SweepPath(o.OutTag, "svg")
	if err := doc.WriteJSON(jsonPath); err != nil {
		return err
	}
	if err := doc.WriteCSV(csvPath); err != nil {
		return err
	}
	title := fmt.Sprintf("memcached throughput vs rps (preset=%s, nclients=%d)", o.Base.Preset, o.Base.NClients)
	if err := doc.WriteSVG(svgPath, title, "rps (client arg; UPDATE/GET only)", "Throughput (ops/s)"); err != nil {
		return err
	}
	for _, p := range []string{jsonPath, csvPath, svgPath} {
		log.WithField("path", p).Info("wrote sweep artifact")
	}

	if o.HistoryPath != "" {
		h, err := results.OpenHistory(o.HistoryPath)
		if err != nil {
			return err
		}
		defer h.Close()
		if err := h.Record(o.OutTag, o.Base.Preset, o.Base.NClients, doc.Meta.SHA["Orthrus"], doc.SeriesOrder()); err != nil {
			return err
		}
	}

	if o.StorageBucket != "" {
		up, err := report.NewUploader(ctx, o.StorageBucket, o.OutTag)
		if err != nil {
			return err
		}
		defer up.Close()
		for _, p := range []string{jsonPath, csvPath, svgPath} {
			if err := up.UploadFile(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildSweepDoc assembles the publishable document from the run list
// and its aggregated series. The per-thread series divides every cell
// by nclients so rate-limited points can be read per load thread.
func buildSweepDoc(o SweepOptions, runs []results.Run, series results.Series) report.SweepDoc {
	return report.SweepDoc{
		Preset:      o.Base.Preset,
		NClients:    o.Base.NClients,
		RPS:         o.RPSList,
		SEIVariants: o.SEIVariants,
		OrthrusSync: o.Base.OrthrusSync,
		Repeats:     o.Repeats,
		Mode:        o.Base.Mode,
		BuildDir:    o.Base.BuildDir,
		Pin:         o.Base.Pin,
		ServerIP:    o.Base.ServerIP,
		PortRange:   report.PortRange{Start: o.Base.PortStart, End: o.Base.PortEnd},
		ClientSSH:   o.Base.ClientSSH,
		Timeout:     common.Duration(o.Base.Timeout),
		Stagger:     common.Duration(o.Base.Stagger),
		Meta: results.Collect(map[string]string{
			"Orthrus":    ".",
			"libsei-gcc": "../libsei-gcc",
		}),
		Note:            report.DefaultNote(),
		Runs:            runs,
		Series:          series,
		SeriesPerThread: series.PerThread(o.Base.NClients),
	}
}

// aggregateRuns reduces the run list to a median per (series, rps).
// Base series pool every flavor's repeats; each flavor's own series
// uses only its runs.
func aggregateRuns(o SweepOptions, runs []results.Run) (results.Series, error) {
	samples := map[string]map[int][]float64{}
	add := func(name string, rps int, v float64) {
		if samples[name] == nil {
			samples[name] = map[int][]float64{}
		}
		samples[name][rps] = append(samples[name][rps], v)
	}
	for _, run := range runs {
		add("vanilla", run.RPS, run.Vanilla)
		add("orthrus", run.RPS, run.Orthrus)
		add("rbv", run.RPS, run.RBV)
		if run.OrthrusSync != nil {
			add("orthrus_sync", run.RPS, *run.OrthrusSync)
		}
		add(variants.SEISeries(run.SEIVariant), run.RPS, run.SEI)
	}

	maxSamples := 0
	for _, byRPS := range samples {
		for _, vals := range byRPS {
			if len(vals) > maxSamples {
				maxSamples = len(vals)
			}
		}
	}

	required := []string{"vanilla", "orthrus", "rbv"}
	for _, v := range o.SEIVariants {
		required = append(required, variants.SEISeries(v))
	}
	var optional []string
	if o.Base.OrthrusSync {
		optional = append(optional, "orthrus_sync")
	}

	sample := func(name string, rps, rep int) (float64, bool) {
		vals := samples[name][rps]
		if rep >= len(vals) {
			return 0, false
		}
		return vals[rep], true
	}
	return results.Aggregate(o.RPSList, required, optional, sample, maxSamples)
}

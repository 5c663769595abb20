// Package report renders a completed sweep into its publishable
// forms: a JSON document, a CSV table, and an SVG line chart, with an
// optional cloud upload of each.
package report

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/aoikida/Orthrus/common"
	"github.com/aoikida/Orthrus/results"
	"github.com/aoikida/Orthrus/variants"
)

// SweepDoc is the full record of one sweep, sufficient to re-plot or
// audit it without the per-point artifacts.
type SweepDoc struct {
	Preset      string             `json:"preset"`
	NClients    int                `json:"nclients"`
	RPS         []int              `json:"rps"`
	SEIVariants []string           `json:"sei_variants"`
	OrthrusSync bool               `json:"orthrus_sync"`
	Repeats     int                `json:"repeats"`
	Mode        string             `json:"mode"`
	BuildDir    string             `json:"build_dir"`
	Pin         bool               `json:"pin"`
	ServerIP    string             `json:"server_ip,omitempty"`
	PortRange   PortRange          `json:"port_range"`
	ClientSSH   string             `json:"client_ssh,omitempty"`
	Timeout     common.Duration    `json:"timeout,omitempty"`
	Stagger     common.Duration    `json:"stagger,omitempty"`
	Meta        results.Provenance `json:"meta"`
	Note        map[string]string  `json:"note"`
	Runs        []results.Run      `json:"runs"`
	Series      results.Series     `json:"series"`

	// SeriesPerThread is Series divided by NClients, one cell per
	// swept rps, so throughput can be read per load thread.
	SeriesPerThread results.Series `json:"series_per_thread,omitempty"`
}

// PortRange mirrors the probe window the sweep was run with.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DefaultNote documents the rps column semantics inside the artifact
// itself, so a reader of just the JSON is not misled.
func DefaultNote() map[string]string {
	return map[string]string{
		"rps_semantics": "rps is passed to the client and applies to UPDATE/GET only; internally the client computes rps_per_thread=rps*ngroups/nclients",
		"rps_0":         "rps=0 means no rate limiting (max load).",
	}
}

func (d SweepDoc) WriteJSON(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sweep doc")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0644), "write sweep doc")
}

func LoadJSON(path string) (SweepDoc, error) {
	var d SweepDoc
	data, err := os.ReadFile(path)
	if err != nil {
		return d, errors.Wrap(err, "read sweep doc")
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, errors.Wrapf(err, "decode %s", path)
	}
	return d, nil
}

// SeriesOrder fixes the column and legend order: baseline first, then
// the requested sei flavors, then the replicated variants.
func (d SweepDoc) SeriesOrder() []string {
	order := []string{"vanilla"}
	for _, flavor := range d.SEIVariants {
		order = append(order, variants.SEISeries(flavor))
	}
	order = append(order, "orthrus")
	if d.OrthrusSync {
		order = append(order, "orthrus_sync")
	}
	order = append(order, "rbv")
	return order
}

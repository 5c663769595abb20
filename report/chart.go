package report

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Chart geometry. The wide right margin is legend space.
const (
	chartWidth   = 1100
	chartHeight  = 650
	marginLeft   = 90
	marginRight  = 320
	marginTop    = 70
	marginBottom = 90
	yTickTarget  = 6
)

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// formatSI compacts a tick value for axis labels.
func formatSI(n float64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fk", n/1_000)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}

// niceStep rounds span/ticks up to a 1, 2 or 5 multiple of a power of
// ten so tick labels land on round values.
func niceStep(span float64, ticks int) float64 {
	if span <= 0 || ticks <= 0 {
		return 1
	}
	raw := span / float64(ticks)
	exp := 0.0
	if raw > 0 {
		exp = math.Floor(math.Log10(raw))
	}
	base := math.Pow(10, exp)
	frac := raw / base
	var nice float64
	switch {
	case frac <= 1:
		nice = 1
	case frac <= 2:
		nice = 2
	case frac <= 5:
		nice = 5
	default:
		nice = 10
	}
	return nice * base
}

func svgEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")
	return r.Replace(s)
}

// WriteSVG renders the sweep as a line chart, one polyline per series
// with point markers and a legend. Missing cells leave gaps in the
// marker set and shorten the polyline rather than plotting zeros.
func (d SweepDoc) WriteSVG(path, title, xLabel, yLabel string) error {
	order := d.SeriesOrder()
	colors := make(map[string]string, len(order))
	for i, name := range order {
		colors[name] = palette[i%len(palette)]
	}

	yMax := 1.0
	seen := false
	for _, name := range order {
		for _, v := range d.Series[name] {
			if v == nil {
				continue
			}
			if !seen || *v > yMax {
				yMax = *v
			}
			seen = true
		}
	}
	yMax *= 1.05

	plotX0 := float64(marginLeft)
	plotY0 := float64(marginTop)
	plotW := float64(chartWidth - marginLeft - marginRight)
	plotH := float64(chartHeight - marginTop - marginBottom)

	xPos := func(i int) float64 {
		if len(d.RPS) <= 1 {
			return plotX0 + plotW/2
		}
		return plotX0 + plotW*float64(i)/float64(len(d.RPS)-1)
	}
	yPos := func(v float64) float64 {
		if yMax <= 0 {
			return plotY0 + plotH
		}
		return plotY0 + plotH*(1-v/yMax)
	}

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, chartWidth, chartHeight)
	line(`<style>` +
		`text{font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Arial;fill:#111;}` +
		`.grid{stroke:#e5e7eb;stroke-width:1;}` +
		`.axis{stroke:#111;stroke-width:1.2;}` +
		`.tick{stroke:#111;stroke-width:1;}` +
		`</style>`)
	line(`<text x="%.1f" y="%.1f" text-anchor="middle" font-size="20">%s</text>`,
		float64(chartWidth)/2, float64(marginTop)/2, svgEscape(title))

	xAxisY := plotY0 + plotH
	line(`<line class="axis" x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f"/>`, plotX0, xAxisY, plotX0+plotW, xAxisY)
	line(`<line class="axis" x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f"/>`, plotX0, plotY0, plotX0, plotY0+plotH)

	step := niceStep(yMax, yTickTarget)
	last := math.Ceil(yMax/step) * step
	for y := 0.0; y <= last+1e-9; y += step {
		yp := yPos(y)
		line(`<line class="grid" x1="%.0f" y1="%.1f" x2="%.0f" y2="%.1f"/>`, plotX0, yp, plotX0+plotW, yp)
		line(`<line class="tick" x1="%.0f" y1="%.1f" x2="%.0f" y2="%.1f"/>`, plotX0-6, yp, plotX0, yp)
		line(`<text x="%.0f" y="%.1f" text-anchor="end" font-size="12">%s</text>`, plotX0-10, yp+4, svgEscape(formatSI(y)))
	}

	for i, rps := range d.RPS {
		xp := xPos(i)
		line(`<line class="tick" x1="%.1f" y1="%.0f" x2="%.1f" y2="%.0f"/>`, xp, xAxisY, xp, xAxisY+6)
		line(`<text x="%.1f" y="%.0f" text-anchor="middle" font-size="12">%d</text>`, xp, xAxisY+24, rps)
	}

	line(`<text x="%.1f" y="%d" text-anchor="middle" font-size="14">%s</text>`,
		plotX0+plotW/2, chartHeight-30, svgEscape(xLabel))
	line(`<text x="20" y="%.1f" text-anchor="middle" font-size="14" transform="rotate(-90 20 %.1f)">%s</text>`,
		plotY0+plotH/2, plotY0+plotH/2, svgEscape(yLabel))

	for _, name := range order {
		type pt struct{ x, y float64 }
		var pts []pt
		for i, v := range d.Series[name] {
			if v == nil {
				continue
			}
			pts = append(pts, pt{xPos(i), yPos(*v)})
		}
		if len(pts) >= 2 {
			var poly []string
			for _, p := range pts {
				poly = append(poly, fmt.Sprintf("%.1f,%.1f", p.x, p.y))
			}
			line(`<polyline fill="none" stroke="%s" stroke-width="2.4" points="%s"/>`,
				colors[name], strings.Join(poly, " "))
		}
		for _, p := range pts {
			line(`<circle cx="%.1f" cy="%.1f" r="4.0" fill="%s" stroke="#fff" stroke-width="1"/>`,
				p.x, p.y, colors[name])
		}
	}

	legendX0 := plotX0 + plotW + 20
	legendY0 := plotY0 + 10
	line(`<text x="%.0f" y="%.0f" font-size="14" font-weight="600">series</text>`, legendX0, legendY0-8)
	for i, name := range order {
		y := legendY0 + float64(i)*22
		line(`<rect x="%.0f" y="%.0f" width="14" height="14" fill="%s"/>`, legendX0, y-10, colors[name])
		line(`<text x="%.0f" y="%.0f" font-size="12">%s</text>`, legendX0+20, y+2, svgEscape(name))
	}

	line(`</svg>`)
	return errors.Wrap(os.WriteFile(path, []byte(b.String()), 0644), "write svg")
}

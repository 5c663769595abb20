package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/aoikida/Orthrus/results"
)

// WriteCSV emits one row per swept rps with one column per series,
// followed by the per-thread columns when that series is present.
// Cells for missing samples are left empty rather than zeroed so
// spreadsheet plots skip them.
func (d SweepDoc) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	order := d.SeriesOrder()
	perThread := len(d.SeriesPerThread) > 0

	header := append([]string{"rps"}, order...)
	if perThread {
		for _, name := range order {
			header = append(header, name+"_per_thread")
		}
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	cell := func(s results.Series, name string, i int) string {
		col := s[name]
		if i >= len(col) || col[i] == nil {
			return ""
		}
		return fmt.Sprintf("%.3f", *col[i])
	}
	for i, rps := range d.RPS {
		row := make([]string, 0, len(header))
		row = append(row, fmt.Sprintf("%d", rps))
		for _, name := range order {
			row = append(row, cell(d.Series, name, i))
		}
		if perThread {
			for _, name := range order {
				row = append(row, cell(d.SeriesPerThread, name, i))
			}
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

package report

import (
	"encoding/csv"
	"io"

	"github.com/chanonchantad/anon-pipeline/internal/dateshift"
)

// legendHeader is the first row of the legend file.
var legendHeader = []string{"original_date", "shifted_date"}

// WriteLegend writes the shifted date legend as CSV. Entries are written in
// the order given.
func WriteLegend(output io.Writer, entries []dateshift.Entry) error {
	cw := csv.NewWriter(output)
	if err := cw.Write(legendHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Original, e.Shifted}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

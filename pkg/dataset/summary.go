package dataset

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary describes a numeric column for collaborators that preview a file
// before running an analysis.
type Summary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std"`
	Missing int     `json:"missing"`
}

// NumericSummaries computes per-column summaries for every numeric column,
// keyed by column name. Columns with no valid values map to a zero Summary
// with the missing count filled in.
func (d *Dataset) NumericSummaries() map[string]Summary {
	out := make(map[string]Summary)
	for _, name := range d.order {
		col := d.columns[name]
		if col.Type != Numeric {
			continue
		}
		var (
			values  []float64
			missing int
		)
		for i := range col.Values {
			f, ok := col.Float(i)
			if !ok {
				missing++
				continue
			}
			values = append(values, f)
		}
		s := Summary{Missing: missing}
		if len(values) > 0 {
			s.Min = values[0]
			s.Max = values[0]
			for _, v := range values {
				s.Min = math.Min(s.Min, v)
				s.Max = math.Max(s.Max, v)
			}
			s.Mean = stat.Mean(values, nil)
			if len(values) > 1 {
				s.StdDev = math.Sqrt(stat.Variance(values, nil))
			}
		}
		out[name] = s
	}
	return out
}

package crosstab

import "math"

// Margins holds the marginal totals of a table.
type Margins struct {
	RowTotals  map[string]float64 `json:"row_totals"`
	ColTotals  map[string]float64 `json:"col_totals"`
	GrandTotal float64            `json:"grand_total"`
}

// ComputeMargins sums the table's rows, columns, and grand total.
func ComputeMargins(t *Table) Margins {
	m := Margins{
		RowTotals: make(map[string]float64, len(t.RowKeys)),
		ColTotals: make(map[string]float64, len(t.ColKeys)),
	}
	for _, rk := range t.RowKeys {
		m.RowTotals[rk] = 0
	}
	for _, ck := range t.ColKeys {
		m.ColTotals[ck] = 0
		for _, rk := range t.RowKeys {
			v := t.Cells[ck][rk]
			m.RowTotals[rk] += v
			m.ColTotals[ck] += v
			m.GrandTotal += v
		}
	}
	return m
}

// Percentages holds the requested percentage tables, each shaped like the
// count table (column key, then row key).
type Percentages struct {
	RowPct   map[string]map[string]float64 `json:"row_pct,omitempty"`
	ColPct   map[string]map[string]float64 `json:"col_pct,omitempty"`
	TotalPct map[string]map[string]float64 `json:"total_pct,omitempty"`
}

// ComputePercentages derives the percentage tables selected in display.
// Zero totals yield 0 rather than NaN. Column percentages for
// multiple-response tables divide by the respondent base unless the request
// chose the selections base.
func ComputePercentages(t *Table, m Margins, display Display, decimals int) *Percentages {
	if !display.RowPct && !display.ColPct && !display.TotalPct {
		return nil
	}
	p := &Percentages{}
	if display.RowPct {
		p.RowPct = percentageTable(t, decimals, func(ck, rk string) float64 {
			return m.RowTotals[rk]
		})
	}
	if display.ColPct {
		p.ColPct = percentageTable(t, decimals, func(ck, rk string) float64 {
			if t.RespondentBase != nil && t.BaseMode == BaseRespondents {
				return t.RespondentBase[ck]
			}
			return m.ColTotals[ck]
		})
	}
	if display.TotalPct {
		p.TotalPct = percentageTable(t, decimals, func(ck, rk string) float64 {
			return m.GrandTotal
		})
	}
	return p
}

func percentageTable(t *Table, decimals int, denom func(ck, rk string) float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.ColKeys))
	for _, ck := range t.ColKeys {
		cells := make(map[string]float64, len(t.RowKeys))
		for _, rk := range t.RowKeys {
			d := denom(ck, rk)
			if d == 0 {
				cells[rk] = 0
				continue
			}
			cells[rk] = roundHalfUp(100*t.Cells[ck][rk]/d, decimals)
		}
		out[ck] = cells
	}
	return out
}

// roundHalfUp rounds to the given number of decimal places with halves
// rounding away from zero, the convention end users of statistical software
// expect.
func roundHalfUp(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	if v < 0 {
		return -math.Floor(-v*scale+0.5) / scale
	}
	return math.Floor(v*scale+0.5) / scale
}

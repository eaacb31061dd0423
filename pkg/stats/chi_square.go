package stats

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// lowExpectedShare is the standard validity threshold: chi-square becomes
// unreliable when more than this share of cells has expected count below 5.
const lowExpectedShare = 0.2

// ChiSquare computes the chi-square test of independence on an observed
// frequency matrix. Cells with zero expected count are excluded from the
// statistic per convention.
func (s *Suite) ChiSquare(observed [][]float64) *ChiSquareResult {
	r := len(observed)
	c := 0
	if r > 0 {
		c = len(observed[0])
	}
	if r < 2 || c < 2 {
		reason := "requires at least a 2x2 table"
		s.logSkip("chi_square", reason)
		return &ChiSquareResult{Error: reason}
	}

	rowTotals := make([]float64, r)
	colTotals := make([]float64, c)
	var grand float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			rowTotals[i] += observed[i][j]
			colTotals[j] += observed[i][j]
			grand += observed[i][j]
		}
	}
	if grand <= 0 {
		reason := "table has no observations"
		s.logSkip("chi_square", reason)
		return &ChiSquareResult{Error: reason}
	}

	var (
		chi2     float64
		lowCells int
	)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			expected := rowTotals[i] * colTotals[j] / grand
			if expected < 5 {
				lowCells++
			}
			if expected > 0 {
				diff := observed[i][j] - expected
				chi2 += diff * diff / expected
			}
		}
	}

	dof := (r - 1) * (c - 1)
	p := distuv.ChiSquared{K: float64(dof)}.Survival(chi2)
	significant, label, marker := s.significance(p)

	result := &ChiSquareResult{
		Chi2:         fptr(chi2),
		DOF:          iptr(dof),
		P:            fptr(p),
		Significant:  significant,
		Significance: label,
		Marker:       marker,
	}
	if float64(lowCells) > lowExpectedShare*float64(r*c) {
		result.LowExpected = true
		result.Warning = "more than 20% of cells have expected count below 5; chi-square may be unreliable"
	}
	return result
}

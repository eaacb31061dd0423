package stats

import "math"

// CramersV normalizes chi-square into [0, 1]: V = sqrt(chi2 / (n * min(R-1, C-1))).
// Undefined for tables with a single row or column.
func (s *Suite) CramersV(chi2, n float64, rows, cols int) *AssociationResult {
	minDim := rows - 1
	if cols-1 < minDim {
		minDim = cols - 1
	}
	if minDim < 1 || n <= 0 {
		reason := "undefined for tables with fewer than two rows or columns"
		s.logSkip("cramers_v", reason)
		return &AssociationResult{Error: reason}
	}
	v := math.Sqrt(chi2 / (n * float64(minDim)))
	if v > 1 {
		v = 1
	}
	return &AssociationResult{
		Value:          fptr(v),
		Interpretation: interpret(v),
		Bands:          AssociationBands,
	}
}

// Phi computes the phi coefficient for a 2x2 table, signed by the direction
// of association (sign of the cross-product difference).
func (s *Suite) Phi(observed [][]float64, chi2, n float64) *AssociationResult {
	if len(observed) != 2 || len(observed[0]) != 2 || len(observed[1]) != 2 {
		reason := "phi is only defined for 2x2 tables"
		s.logSkip("phi", reason)
		return &AssociationResult{Error: reason}
	}
	if n <= 0 {
		reason := "table has no observations"
		s.logSkip("phi", reason)
		return &AssociationResult{Error: reason}
	}
	phi := math.Sqrt(chi2 / n)
	if observed[0][0]*observed[1][1]-observed[0][1]*observed[1][0] < 0 {
		phi = -phi
	}
	return &AssociationResult{
		Value:          fptr(phi),
		Interpretation: interpret(math.Abs(phi)),
		Bands:          AssociationBands,
	}
}

// Contingency computes Pearson's contingency coefficient C = sqrt(chi2 / (chi2 + n)).
func (s *Suite) Contingency(chi2, n float64) *AssociationResult {
	if chi2+n <= 0 {
		reason := "table has no observations"
		s.logSkip("contingency_coefficient", reason)
		return &AssociationResult{Error: reason}
	}
	c := math.Sqrt(chi2 / (chi2 + n))
	return &AssociationResult{
		Value:          fptr(c),
		Interpretation: interpret(c),
		Bands:          AssociationBands,
	}
}

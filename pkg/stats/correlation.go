package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PearsonCorrelation computes Pearson's r for two paired numeric vectors
// with the usual t-based p-value on n-2 degrees of freedom.
func (s *Suite) PearsonCorrelation(x, y []float64) *CorrelationResult {
	if len(x) != len(y) {
		reason := "paired observations have unequal lengths"
		s.logSkip("correlation", reason)
		return &CorrelationResult{Error: reason}
	}
	n := len(x)
	if n < 3 {
		reason := "requires at least three paired observations"
		s.logSkip("correlation", reason)
		return &CorrelationResult{Error: reason}
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		reason := "one of the variables has zero variance"
		s.logSkip("correlation", reason)
		return &CorrelationResult{Error: reason}
	}

	r := stat.Correlation(x, y, nil)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}

	dof := n - 2
	var p float64
	if math.Abs(r) >= 1 {
		p = 0
	} else {
		t := math.Abs(r) * math.Sqrt(float64(dof)/(1-r*r))
		p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}.Survival(t)
	}
	significant, label, marker := s.significance(p)

	return &CorrelationResult{
		R:              fptr(r),
		DOF:            iptr(dof),
		P:              fptr(p),
		Significant:    significant,
		Significance:   label,
		Marker:         marker,
		Interpretation: interpret(math.Abs(r)),
		Bands:          AssociationBands,
	}
}

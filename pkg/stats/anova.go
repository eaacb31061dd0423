package stats

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GroupValues is one category's numeric observations for ANOVA.
type GroupValues struct {
	Name   string
	Values []float64
}

// OneWayANOVA computes the one-way F test across groups: between-group mean
// square over within-group mean square, with (k-1, N-k) degrees of freedom.
func (s *Suite) OneWayANOVA(groups []GroupValues) *ANOVAResult {
	var (
		nonEmpty []GroupValues
		all      []float64
	)
	for _, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, g)
		all = append(all, g.Values...)
	}
	k := len(nonEmpty)
	n := len(all)
	if k < 2 {
		reason := "requires at least two groups with observations"
		s.logSkip("anova", reason)
		return &ANOVAResult{Error: reason}
	}
	if n-k < 1 {
		reason := "requires more observations than groups"
		s.logSkip("anova", reason)
		return &ANOVAResult{Error: reason}
	}

	grandMean := stat.Mean(all, nil)
	var ssBetween, ssWithin float64
	for _, g := range nonEmpty {
		mean := stat.Mean(g.Values, nil)
		d := mean - grandMean
		ssBetween += float64(len(g.Values)) * d * d
		for _, v := range g.Values {
			dv := v - mean
			ssWithin += dv * dv
		}
	}

	dfBetween := k - 1
	dfWithin := n - k
	msWithin := ssWithin / float64(dfWithin)
	if msWithin == 0 {
		// Zero within-group variance makes F unbounded; report the
		// degenerate case instead of emitting Inf.
		reason := "zero within-group variance"
		s.logSkip("anova", reason)
		return &ANOVAResult{Error: reason}
	}

	f := (ssBetween / float64(dfBetween)) / msWithin
	p := distuv.F{D1: float64(dfBetween), D2: float64(dfWithin)}.Survival(f)
	significant, label, marker := s.significance(p)

	return &ANOVAResult{
		F:            fptr(f),
		DFBetween:    iptr(dfBetween),
		DFWithin:     iptr(dfWithin),
		P:            fptr(p),
		Significant:  significant,
		Significance: label,
		Marker:       marker,
	}
}

// Package stats computes the significance and association tests of the
// analysis engine: chi-square independence, Cramer's V, phi, contingency
// coefficient, one-way ANOVA, and Pearson correlation. Distribution
// p-values come from gonum.
//
// Every test degrades gracefully: inapplicable or degenerate inputs produce
// a result carrying a human-readable reason instead of failing the request,
// and no NaN or Inf ever reaches a result field.
package stats

import (
	"fmt"

	"go.uber.org/zap"
)

// AssociationBands documents the interpretation thresholds shared by the
// association measures, verbatim as they appear in results.
const AssociationBands = "<0.1 negligible, 0.1-0.3 weak, 0.3-0.5 moderate, >0.5 strong"

// Suite evaluates statistical tests at a fixed significance level.
type Suite struct {
	logger *zap.Logger
	level  float64
}

// NewSuite creates a test suite. level is the significance threshold for
// p-values (0.05 when zero or out of range).
func NewSuite(logger *zap.Logger, level float64) *Suite {
	if level <= 0 || level >= 1 {
		level = 0.05
	}
	return &Suite{logger: logger, level: level}
}

// Level returns the suite's significance level.
func (s *Suite) Level() float64 { return s.level }

// ChiSquareResult is the chi-square test of independence.
type ChiSquareResult struct {
	Chi2         *float64 `json:"chi2,omitempty"`
	DOF          *int     `json:"dof,omitempty"`
	P            *float64 `json:"p,omitempty"`
	Significant  bool     `json:"significant"`
	Significance string   `json:"significance,omitempty"`
	Marker       string   `json:"marker,omitempty"`
	LowExpected  bool     `json:"low_expected,omitempty"`
	Warning      string   `json:"warning,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// AssociationResult carries a chi-square-derived association measure.
type AssociationResult struct {
	Value          *float64 `json:"value,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
	Bands          string   `json:"bands,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ANOVAResult is a one-way analysis of variance.
type ANOVAResult struct {
	F            *float64 `json:"f,omitempty"`
	DFBetween    *int     `json:"df_between,omitempty"`
	DFWithin     *int     `json:"df_within,omitempty"`
	P            *float64 `json:"p,omitempty"`
	Significant  bool     `json:"significant"`
	Significance string   `json:"significance,omitempty"`
	Marker       string   `json:"marker,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// CorrelationResult is a Pearson correlation with its t-based p-value.
type CorrelationResult struct {
	R              *float64 `json:"r,omitempty"`
	DOF            *int     `json:"dof,omitempty"`
	P              *float64 `json:"p,omitempty"`
	Significant    bool     `json:"significant"`
	Significance   string   `json:"significance,omitempty"`
	Marker         string   `json:"marker,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
	Bands          string   `json:"bands,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Results groups every computed (or skipped) statistic for one analysis.
// Nil members were not requested.
type Results struct {
	ChiSquare   *ChiSquareResult   `json:"chi_square,omitempty"`
	CramersV    *AssociationResult `json:"cramers_v,omitempty"`
	Phi         *AssociationResult `json:"phi,omitempty"`
	Contingency *AssociationResult `json:"contingency_coefficient,omitempty"`
	ANOVA       *ANOVAResult       `json:"anova,omitempty"`
	Correlation *CorrelationResult `json:"correlation,omitempty"`
}

// significance returns the label and marker for a p-value. Markers follow
// survey-tool convention: "*" below the level, "**" an order of magnitude
// below it, "ns" otherwise.
func (s *Suite) significance(p float64) (bool, string, string) {
	if p < s.level {
		marker := "*"
		if p < s.level/10 {
			marker = "**"
		}
		return true, fmt.Sprintf("significant at %g", s.level), marker
	}
	return false, "not significant", "ns"
}

func interpret(v float64) string {
	switch {
	case v < 0.1:
		return "negligible"
	case v < 0.3:
		return "weak"
	case v < 0.5:
		return "moderate"
	default:
		return "strong"
	}
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func (s *Suite) logSkip(test, reason string) {
	if s.logger != nil {
		s.logger.Debug("Statistic skipped", zap.String("test", test), zap.String("reason", reason))
	}
}

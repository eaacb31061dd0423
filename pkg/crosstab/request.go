// Package crosstab builds weighted contingency tables and assembles the
// analysis response: counts, margins, percentage variants, and the
// requested statistics.
package crosstab

import (
	"fmt"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
	"github.com/halderavik/cross-tab-tool/pkg/derive"
	"github.com/halderavik/cross-tab-tool/pkg/filter"
)

// Statistic names accepted in Request.Statistics.
const (
	StatChiSquare   = "chi-square"
	StatPhiCramer   = "phi-cramer"
	StatContingency = "contingency"
	StatANOVA       = "anova"
	StatCorrelation = "correlation"
)

// Percentage bases for multiple-response variables.
const (
	BaseRespondents = "respondents"
	BaseSelections  = "selections"
)

// DefaultDecimalPlaces is applied when the request omits decimal_places.
const DefaultDecimalPlaces = 1

// Display selects which percentage tables to compute.
type Display struct {
	RowPct   bool `json:"row_pct"`
	ColPct   bool `json:"col_pct"`
	TotalPct bool `json:"total_pct"`
}

// Significance configures significance testing. Enabling it forces the
// chi-square test even when not listed in Statistics.
type Significance struct {
	Enable bool    `json:"enable"`
	Level  float64 `json:"level"`
}

// MultiResponseSpec declares a variable as multiple-response: a delimited
// cell expands into one binary category per option.
type MultiResponseSpec struct {
	Type      string   `json:"type"` // "select_all"
	Options   []string `json:"options"`
	Delimiter string   `json:"delimiter,omitempty"` // default ","
	// Base chooses the column-percentage denominator: "respondents"
	// (default) or "selections".
	Base string `json:"base,omitempty"`
}

// Request is the full cross-tabulation request contract.
type Request struct {
	RowVars          []string                     `json:"row_vars"`
	ColVars          []string                     `json:"col_vars"`
	WeightVar        string                       `json:"weight_var,omitempty"`
	Subgroup         filter.Subgroup              `json:"subgroup,omitempty"`
	Statistics       []string                     `json:"statistics,omitempty"`
	Display          Display                      `json:"display"`
	Significance     Significance                 `json:"significance"`
	DecimalPlaces    *int                         `json:"decimal_places,omitempty"`
	Missing          dataset.MissingPolicy        `json:"missing,omitempty"`
	HideEmpty        bool                         `json:"hide_empty,omitempty"`
	CustomVariables  []derive.CustomVariable      `json:"custom_variables,omitempty"`
	MultipleResponse map[string]MultiResponseSpec `json:"multiple_response,omitempty"`
}

// ValidationError aborts a request before any computation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

func (r *Request) decimalPlaces() int {
	if r.DecimalPlaces == nil {
		return DefaultDecimalPlaces
	}
	return *r.DecimalPlaces
}

func (r *Request) missingPolicy() dataset.MissingPolicy {
	if r.Missing == dataset.IncludeMissing {
		return dataset.IncludeMissing
	}
	return dataset.ExcludeMissing
}

// validate checks everything that does not need the dataset: shape of the
// variable lists and known statistic names.
func (r *Request) validate() error {
	if len(r.RowVars) == 0 {
		return &ValidationError{Field: "row_vars", Message: "at least one row variable is required"}
	}
	for _, s := range r.Statistics {
		switch s {
		case StatChiSquare, StatPhiCramer, StatContingency, StatANOVA, StatCorrelation:
		default:
			return &ValidationError{Field: "statistics", Message: fmt.Sprintf("unknown statistic %q", s)}
		}
	}
	switch r.Missing {
	case "", dataset.ExcludeMissing, dataset.IncludeMissing:
	default:
		return &ValidationError{Field: "missing", Message: fmt.Sprintf("unknown missing policy %q", r.Missing)}
	}
	if r.DecimalPlaces != nil && *r.DecimalPlaces < 0 {
		return &ValidationError{Field: "decimal_places",
			Message: fmt.Sprintf("must be zero or positive, got %d", *r.DecimalPlaces)}
	}
	for name, spec := range r.MultipleResponse {
		switch spec.Base {
		case "", BaseRespondents, BaseSelections:
		default:
			return &ValidationError{Field: "multiple_response",
				Message: fmt.Sprintf("variable %q: unknown base %q", name, spec.Base)}
		}
	}
	return nil
}

// resolve checks every referenced name against the (augmented) dataset.
func (r *Request) resolve(ds *dataset.Dataset) error {
	for _, v := range r.RowVars {
		if !ds.HasColumn(v) {
			return &ValidationError{Field: "row_vars", Message: fmt.Sprintf("unknown variable %q", v)}
		}
	}
	for _, v := range r.ColVars {
		if !ds.HasColumn(v) {
			return &ValidationError{Field: "col_vars", Message: fmt.Sprintf("unknown variable %q", v)}
		}
	}
	if r.WeightVar != "" {
		col, err := ds.Column(r.WeightVar)
		if err != nil {
			return &ValidationError{Field: "weight_var", Message: fmt.Sprintf("unknown variable %q", r.WeightVar)}
		}
		if col.Type != dataset.Numeric {
			return &ValidationError{Field: "weight_var", Message: fmt.Sprintf("variable %q is not numeric", r.WeightVar)}
		}
	}
	for v := range r.Subgroup {
		if !ds.HasColumn(v) {
			return &ValidationError{Field: "subgroup", Message: fmt.Sprintf("unknown variable %q", v)}
		}
	}
	for v := range r.MultipleResponse {
		if !ds.HasColumn(v) {
			return &ValidationError{Field: "multiple_response", Message: fmt.Sprintf("unknown variable %q", v)}
		}
	}
	return nil
}

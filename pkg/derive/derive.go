// Package derive evaluates custom (derived) variable definitions against a
// dataset, producing new indicator or recode columns.
package derive

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
)

// Comparison is the per-condition comparison kind.
type Comparison string

const (
	Equals      Comparison = "equals"
	Contains    Comparison = "contains"
	GreaterThan Comparison = "greater_than"
	LessThan    Comparison = "less_than"
)

// Operator joins a condition to the running result of the conditions before
// it.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// Condition is one clause of a custom variable definition.
type Condition struct {
	Column     string     `json:"column"`
	Comparison Comparison `json:"comparison"`
	Value      string     `json:"value"`
	Operator   Operator   `json:"operator,omitempty"`
}

// Group maps a condition chain to an output category for multi-group
// recodes. Groups are evaluated in declaration order; the first group whose
// conditions hold wins.
type Group struct {
	Value      string      `json:"new_value"`
	Conditions []Condition `json:"conditions"`
}

// CustomVariable defines a derived column. With Conditions set, the column
// is a 0/1 indicator. With Groups set, the column is a multi-category
// recode; rows matching no group are left missing.
type CustomVariable struct {
	Name       string      `json:"name"`
	Label      string      `json:"label,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Groups     []Group     `json:"groups,omitempty"`
}

// UnknownVariableError reports a condition referencing a column that does
// not exist in the dataset.
type UnknownVariableError struct {
	Variable string
	Column   string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("custom variable %q references unknown column %q", e.Variable, e.Column)
}

// InvalidConditionError reports a condition with an unrecognized comparison
// or operator. Unknown kinds are rejected, never silently skipped.
type InvalidConditionError struct {
	Variable string
	Detail   string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("custom variable %q: %s", e.Variable, e.Detail)
}

// Evaluator appends derived columns to a dataset.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates a new custom variable evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Apply evaluates every spec against ds and returns a copy of ds with the
// derived columns appended. The source dataset is never mutated.
func (e *Evaluator) Apply(ds *dataset.Dataset, specs []CustomVariable) (*dataset.Dataset, error) {
	if len(specs) == 0 {
		return ds, nil
	}
	out := ds.Clone()
	for _, spec := range specs {
		col, err := e.evaluate(out, spec)
		if err != nil {
			return nil, err
		}
		if err := out.AppendColumn(col); err != nil {
			return nil, err
		}
		e.logger.Info("Derived variable created",
			zap.String("variable", spec.Name),
			zap.Int("conditions", len(spec.Conditions)),
			zap.Int("groups", len(spec.Groups)))
	}
	return out, nil
}

func (e *Evaluator) evaluate(ds *dataset.Dataset, spec CustomVariable) (*dataset.Column, error) {
	if err := e.validate(ds, spec); err != nil {
		return nil, err
	}

	n := ds.RowCount()
	values := make([]string, n)

	if len(spec.Groups) > 0 {
		for i := 0; i < n; i++ {
			// First matching group wins; no match stays missing.
			for _, g := range spec.Groups {
				ok, err := e.fold(ds, spec.Name, g.Conditions, i)
				if err != nil {
					return nil, err
				}
				if ok {
					values[i] = g.Value
					break
				}
			}
		}
	} else {
		for i := 0; i < n; i++ {
			ok, err := e.fold(ds, spec.Name, spec.Conditions, i)
			if err != nil {
				return nil, err
			}
			if ok {
				values[i] = "1"
			} else {
				values[i] = "0"
			}
		}
	}

	return &dataset.Column{
		Name:   spec.Name,
		Label:  spec.Label,
		Type:   dataset.Categorical,
		Values: values,
	}, nil
}

func (e *Evaluator) validate(ds *dataset.Dataset, spec CustomVariable) error {
	chains := [][]Condition{spec.Conditions}
	for _, g := range spec.Groups {
		chains = append(chains, g.Conditions)
	}
	for _, conds := range chains {
		for _, c := range conds {
			if !ds.HasColumn(c.Column) {
				return &UnknownVariableError{Variable: spec.Name, Column: c.Column}
			}
			switch c.Comparison {
			case Equals, Contains, GreaterThan, LessThan:
			default:
				return &InvalidConditionError{Variable: spec.Name,
					Detail: fmt.Sprintf("unknown comparison %q", c.Comparison)}
			}
			switch c.Operator {
			case "", And, Or:
			default:
				return &InvalidConditionError{Variable: spec.Name,
					Detail: fmt.Sprintf("unknown operator %q", c.Operator)}
			}
		}
	}
	if len(spec.Conditions) == 0 && len(spec.Groups) == 0 {
		return &InvalidConditionError{Variable: spec.Name, Detail: "no conditions defined"}
	}
	return nil
}

// fold combines conditions left to right: the first condition seeds the
// result, each following condition is joined via its own operator.
func (e *Evaluator) fold(ds *dataset.Dataset, variable string, conds []Condition, row int) (bool, error) {
	if len(conds) == 0 {
		return false, nil
	}
	result, err := e.test(ds, variable, conds[0], row)
	if err != nil {
		return false, err
	}
	for _, c := range conds[1:] {
		v, err := e.test(ds, variable, c, row)
		if err != nil {
			return false, err
		}
		if c.Operator == Or {
			result = result || v
		} else {
			result = result && v
		}
	}
	return result, nil
}

func (e *Evaluator) test(ds *dataset.Dataset, variable string, c Condition, row int) (bool, error) {
	col, err := ds.Column(c.Column)
	if err != nil {
		return false, &UnknownVariableError{Variable: variable, Column: c.Column}
	}
	raw := col.Values[row]

	switch c.Comparison {
	case Equals:
		return raw == c.Value, nil
	case Contains:
		return strings.Contains(strings.ToLower(raw), strings.ToLower(c.Value)), nil
	case GreaterThan, LessThan:
		left, ok := col.Float(row)
		if !ok {
			return false, nil
		}
		right, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false, nil
		}
		if c.Comparison == GreaterThan {
			return left > right, nil
		}
		return left < right, nil
	default:
		return false, &InvalidConditionError{Variable: variable,
			Detail: fmt.Sprintf("unknown comparison %q", c.Comparison)}
	}
}

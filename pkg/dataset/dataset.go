// Package dataset holds the in-memory column store the analysis engine runs
// against. A Dataset is built once by a file source (CSV today, SPSS via an
// external parser), optionally augmented with derived columns, and is never
// mutated after that.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// SemanticType classifies how a column participates in an analysis.
type SemanticType string

const (
	Numeric          SemanticType = "numeric"
	Categorical      SemanticType = "categorical"
	Ordinal          SemanticType = "ordinal"
	MultipleResponse SemanticType = "multiple_response"
)

// MissingPolicy controls how missing cells contribute to tables.
type MissingPolicy string

const (
	// ExcludeMissing drops a row from every cell of a table whenever any
	// participating variable is missing for that row.
	ExcludeMissing MissingPolicy = "exclude"
	// IncludeMissing keeps missing cells as their own category.
	IncludeMissing MissingPolicy = "include"
)

// MissingCategory is the category label under which missing cells are
// tabulated when the policy is IncludeMissing.
const MissingCategory = "Missing"

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrLengthMismatch  = errors.New("column length does not match dataset row count")
)

// ValueLabel maps a raw code to its display label. Labels keep the order in
// which the source file declared them; that order drives category ordering
// in tables.
type ValueLabel struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Column is a named, typed sequence of raw cell values. Cells are stored as
// their raw string form; numeric interpretation happens on demand.
type Column struct {
	Name         string       `json:"name"`
	Label        string       `json:"label,omitempty"`
	Type         SemanticType `json:"type"`
	Values       []string     `json:"-"`
	ValueLabels  []ValueLabel `json:"value_labels,omitempty"`
	MissingCodes []string     `json:"missing_codes,omitempty"`
}

// IsMissing reports whether the cell at row i is missing: empty, NaN, or one
// of the column's declared missing codes.
func (c *Column) IsMissing(i int) bool {
	v := c.Values[i]
	if v == "" {
		return true
	}
	for _, code := range c.MissingCodes {
		if v == code {
			return true
		}
	}
	if c.Type == Numeric {
		if f, err := strconv.ParseFloat(v, 64); err == nil && math.IsNaN(f) {
			return true
		}
	}
	return false
}

// Float parses the cell at row i as a number. The second return is false for
// missing or non-numeric cells.
func (c *Column) Float(i int) (float64, bool) {
	if c.IsMissing(i) {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Values[i], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DisplayValue returns the label declared for the cell's raw code, falling
// back to the raw value when no label exists.
func (c *Column) DisplayValue(i int) string {
	raw := c.Values[i]
	for _, vl := range c.ValueLabels {
		if vl.Code == raw {
			return vl.Label
		}
	}
	return raw
}

// Categories returns the column's category domain in deterministic order:
// declared value labels first, then remaining non-missing values in
// first-seen order.
func (c *Column) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, vl := range c.ValueLabels {
		if !seen[vl.Label] {
			seen[vl.Label] = true
			out = append(out, vl.Label)
		}
	}
	for i := range c.Values {
		if c.IsMissing(i) {
			continue
		}
		v := c.DisplayValue(i)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Dataset is an ordered collection of equally sized columns.
type Dataset struct {
	columns map[string]*Column
	order   []string
	rows    int
}

// New creates an empty dataset with a fixed row count.
func New(rows int) *Dataset {
	return &Dataset{
		columns: make(map[string]*Column),
		rows:    rows,
	}
}

// RowCount returns the shared row count N.
func (d *Dataset) RowCount() int { return d.rows }

// ColumnNames returns column names in insertion order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, error) {
	col, ok := d.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return col, nil
}

// HasColumn reports whether name resolves to a column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// AppendColumn adds a column to the dataset. The column's value slice must
// match the dataset row count exactly.
func (d *Dataset) AppendColumn(col *Column) error {
	if _, exists := d.columns[col.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
	}
	if len(col.Values) != d.rows {
		return fmt.Errorf("%w: column %q has %d values, dataset has %d rows",
			ErrLengthMismatch, col.Name, len(col.Values), d.rows)
	}
	d.columns[col.Name] = col
	d.order = append(d.order, col.Name)
	return nil
}

// Clone returns a shallow copy sharing column data. Derived columns are
// appended to the copy, never to the original, so a source dataset stays
// safe for concurrent readers.
func (d *Dataset) Clone() *Dataset {
	cp := &Dataset{
		columns: make(map[string]*Column, len(d.columns)),
		order:   make([]string, len(d.order)),
		rows:    d.rows,
	}
	for name, col := range d.columns {
		cp.columns[name] = col
	}
	copy(cp.order, d.order)
	return cp
}

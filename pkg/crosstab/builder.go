package crosstab

import (
	"strings"

	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
)

// keySeparator joins per-variable category labels into a composite key when
// more than one row or column variable participates.
const keySeparator = ", "

// Table is the joint frequency table. Cells are keyed column-first to match
// the wire contract: Cells[colKey][rowKey] holds the (possibly weighted)
// count.
type Table struct {
	RowKeys []string
	ColKeys []string
	Cells   map[string]map[string]float64
	RowVars []string
	ColVars []string

	// MultiResponse is set when any participating variable is
	// multiple-response; counts then need not sum to the respondent count.
	MultiResponse bool
	// RespondentBase holds, per column key, the weighted number of distinct
	// respondents contributing to that column. Used as the column-percentage
	// denominator under the respondents base.
	RespondentBase map[string]float64
	// BaseMode is the configured multi-response percentage base.
	BaseMode string
	// DroppedZeros is set when hide_empty pruned all-zero rows or columns.
	DroppedZeros bool
	// DefaultedWeights counts rows whose weight cell was missing or
	// non-numeric and fell back to 1.0.
	DefaultedWeights int
}

// Total returns the sum over all cells.
func (t *Table) Total() float64 {
	var total float64
	for _, rows := range t.Cells {
		for _, v := range rows {
			total += v
		}
	}
	return total
}

// Observed renders the table as a row-major observed-counts matrix in key
// order, the shape the statistical tests consume.
func (t *Table) Observed() [][]float64 {
	out := make([][]float64, len(t.RowKeys))
	for i, rk := range t.RowKeys {
		out[i] = make([]float64, len(t.ColKeys))
		for j, ck := range t.ColKeys {
			out[i][j] = t.Cells[ck][rk]
		}
	}
	return out
}

// axisVar is one variable's contribution to a table axis.
type axisVar struct {
	col     *dataset.Column
	mr      *MultiResponseSpec
	numeric bool
	domain  []string
}

// Builder computes joint frequency tables.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a table builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build tabulates the active rows of ds into a table for req. An empty
// active population produces a valid table with no keys, not an error.
func (b *Builder) Build(ds *dataset.Dataset, req *Request, rows []int) (*Table, error) {
	policy := req.missingPolicy()

	rowAxis, err := b.axis(ds, req, req.RowVars, rows, policy)
	if err != nil {
		return nil, err
	}
	colAxis, err := b.axis(ds, req, req.ColVars, rows, policy)
	if err != nil {
		return nil, err
	}

	t := &Table{
		RowKeys:  compositeKeys(rowAxis),
		ColKeys:  compositeKeys(colAxis),
		Cells:    make(map[string]map[string]float64),
		RowVars:  req.RowVars,
		ColVars:  req.ColVars,
		BaseMode: BaseRespondents,
	}
	for _, av := range append(append([]axisVar{}, rowAxis...), colAxis...) {
		if av.mr != nil {
			t.MultiResponse = true
			if av.mr.Base == BaseSelections {
				t.BaseMode = BaseSelections
			}
		}
	}
	for _, ck := range t.ColKeys {
		cells := make(map[string]float64, len(t.RowKeys))
		for _, rk := range t.RowKeys {
			cells[rk] = 0
		}
		t.Cells[ck] = cells
	}
	if t.MultiResponse {
		t.RespondentBase = make(map[string]float64, len(t.ColKeys))
	}

	var weightCol *dataset.Column
	if req.WeightVar != "" {
		weightCol, err = ds.Column(req.WeightVar)
		if err != nil {
			return nil, err
		}
	}

	for _, i := range rows {
		w := 1.0
		if weightCol != nil {
			if f, ok := weightCol.Float(i); ok {
				w = f
			} else {
				// A missing or non-numeric weight falls back to 1.0 rather
				// than silently corrupting the cell.
				t.DefaultedWeights++
			}
		}

		rowKeys, ok := rowCompositeKeys(rowAxis, i, policy)
		if !ok {
			continue
		}
		colKeys, ok := rowCompositeKeys(colAxis, i, policy)
		if !ok {
			continue
		}

		for _, ck := range colKeys {
			for _, rk := range rowKeys {
				t.Cells[ck][rk] += w
			}
			if t.RespondentBase != nil {
				t.RespondentBase[ck] += w
			}
		}
	}

	if req.HideEmpty {
		b.pruneEmpty(t)
	}
	if t.DefaultedWeights > 0 {
		b.logger.Warn("Rows with missing or non-numeric weights defaulted to 1.0",
			zap.String("weight_var", req.WeightVar),
			zap.Int("rows", t.DefaultedWeights))
	}
	return t, nil
}

// axis resolves each variable into its deterministic category domain over
// the active rows.
func (b *Builder) axis(ds *dataset.Dataset, req *Request, vars []string, rows []int, policy dataset.MissingPolicy) ([]axisVar, error) {
	out := make([]axisVar, 0, len(vars))
	for _, name := range vars {
		col, err := ds.Column(name)
		if err != nil {
			return nil, err
		}
		av := axisVar{col: col}
		if spec, ok := req.MultipleResponse[name]; ok {
			av.mr = &spec
		} else if col.Type == dataset.Numeric {
			av.numeric = true
		}
		av.domain = b.domain(av, rows, policy)
		out = append(out, av)
	}
	return out, nil
}

// domain computes a variable's ordered category domain: declared
// value-label order first, then first-seen order among the active rows,
// with "Missing" last under the include policy.
func (b *Builder) domain(av axisVar, rows []int, policy dataset.MissingPolicy) []string {
	var (
		out        []string
		seen       = make(map[string]bool)
		anyMissing bool
	)

	switch {
	case av.mr != nil:
		// Configured options keep their declared order even when never
		// selected, matching the binary-column expansion of the source data.
		for _, opt := range av.mr.Options {
			key := av.col.Name + "_" + opt
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
		if len(av.mr.Options) == 0 {
			for _, i := range rows {
				if av.col.IsMissing(i) {
					anyMissing = true
					continue
				}
				selections := splitSelections(av.col.Values[i], av.mr.Delimiter)
				if len(selections) == 0 {
					anyMissing = true
				}
				for _, opt := range selections {
					key := av.col.Name + "_" + opt
					if !seen[key] {
						seen[key] = true
						out = append(out, key)
					}
				}
			}
		} else {
			allowed := make(map[string]bool, len(av.mr.Options))
			for _, opt := range av.mr.Options {
				allowed[opt] = true
			}
			for _, i := range rows {
				if av.col.IsMissing(i) {
					anyMissing = true
					continue
				}
				// A cell with nothing recognizable selected tabulates as
				// missing too.
				recognized := false
				for _, s := range splitSelections(av.col.Values[i], av.mr.Delimiter) {
					if allowed[s] {
						recognized = true
						break
					}
				}
				if !recognized {
					anyMissing = true
				}
			}
		}
	case av.numeric:
		// Numeric variables are a single pseudo-category unless pre-binned
		// upstream via a recode.
		present := false
		for _, i := range rows {
			if av.col.IsMissing(i) {
				anyMissing = true
			} else {
				present = true
			}
		}
		if present {
			out = append(out, av.col.Name)
		}
	default:
		declared := make(map[string]bool)
		for _, vl := range av.col.ValueLabels {
			declared[vl.Label] = true
		}
		presentDeclared := make(map[string]bool)
		var firstSeen []string
		for _, i := range rows {
			if av.col.IsMissing(i) {
				anyMissing = true
				continue
			}
			v := av.col.DisplayValue(i)
			if declared[v] {
				presentDeclared[v] = true
			} else if !seen[v] {
				seen[v] = true
				firstSeen = append(firstSeen, v)
			}
		}
		for _, vl := range av.col.ValueLabels {
			if presentDeclared[vl.Label] && !seen[vl.Label] {
				seen[vl.Label] = true
				out = append(out, vl.Label)
			}
		}
		out = append(out, firstSeen...)
	}

	if policy == dataset.IncludeMissing && anyMissing {
		out = append(out, dataset.MissingCategory)
	}
	return out
}

// categories returns the category labels the row contributes for one
// variable, and whether the value counts as missing under the policy.
func categories(av axisVar, i int, policy dataset.MissingPolicy) ([]string, bool) {
	if av.col.IsMissing(i) {
		if policy == dataset.IncludeMissing {
			return []string{dataset.MissingCategory}, true
		}
		return nil, true
	}

	switch {
	case av.mr != nil:
		selected := splitSelections(av.col.Values[i], av.mr.Delimiter)
		if len(av.mr.Options) > 0 {
			allowed := make(map[string]bool, len(av.mr.Options))
			for _, opt := range av.mr.Options {
				allowed[opt] = true
			}
			filtered := selected[:0]
			for _, s := range selected {
				if allowed[s] {
					filtered = append(filtered, s)
				}
			}
			selected = filtered
		}
		if len(selected) == 0 {
			// Nothing recognizable selected: the respondent contributes no
			// cell for this variable, same as missing.
			if policy == dataset.IncludeMissing {
				return []string{dataset.MissingCategory}, true
			}
			return nil, true
		}
		keys := make([]string, len(selected))
		for j, s := range selected {
			keys[j] = av.col.Name + "_" + s
		}
		return keys, false
	case av.numeric:
		return []string{av.col.Name}, false
	default:
		return []string{av.col.DisplayValue(i)}, false
	}
}

// rowCompositeKeys expands one row into its composite keys for an axis. The
// second return is false when the row is excluded from the axis entirely.
func rowCompositeKeys(axis []axisVar, i int, policy dataset.MissingPolicy) ([]string, bool) {
	if len(axis) == 0 {
		return []string{""}, true
	}
	parts := make([][]string, len(axis))
	for j, av := range axis {
		cats, missing := categories(av, i, policy)
		if missing && policy == dataset.ExcludeMissing {
			return nil, false
		}
		parts[j] = cats
	}
	return cartesian(parts), true
}

// compositeKeys builds the full ordered key list for an axis as the
// cartesian product of per-variable domains. An axis with no variables (a
// one-way table) collapses to the single empty key.
func compositeKeys(axis []axisVar) []string {
	if len(axis) == 0 {
		return []string{""}
	}
	parts := make([][]string, len(axis))
	for j, av := range axis {
		parts[j] = av.domain
	}
	return cartesian(parts)
}

func cartesian(parts [][]string) []string {
	keys := []string{""}
	for _, cats := range parts {
		if len(cats) == 0 {
			return nil
		}
		next := make([]string, 0, len(keys)*len(cats))
		for _, prefix := range keys {
			for _, c := range cats {
				if prefix == "" {
					next = append(next, c)
				} else {
					next = append(next, prefix+keySeparator+c)
				}
			}
		}
		keys = next
	}
	return keys
}

func splitSelections(raw, delimiter string) []string {
	if delimiter == "" {
		delimiter = ","
	}
	var out []string
	for _, part := range strings.Split(raw, delimiter) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pruneEmpty removes all-zero rows and columns from the table.
func (b *Builder) pruneEmpty(t *Table) {
	rowTotals := make(map[string]float64, len(t.RowKeys))
	colTotals := make(map[string]float64, len(t.ColKeys))
	for ck, rows := range t.Cells {
		for rk, v := range rows {
			rowTotals[rk] += v
			colTotals[ck] += v
		}
	}

	var rowKeys []string
	for _, rk := range t.RowKeys {
		if rowTotals[rk] != 0 {
			rowKeys = append(rowKeys, rk)
		} else {
			t.DroppedZeros = true
		}
	}
	var colKeys []string
	for _, ck := range t.ColKeys {
		if colTotals[ck] != 0 {
			colKeys = append(colKeys, ck)
		} else {
			t.DroppedZeros = true
			delete(t.Cells, ck)
			delete(t.RespondentBase, ck)
		}
	}
	if len(rowKeys) < len(t.RowKeys) {
		for _, ck := range colKeys {
			cells := make(map[string]float64, len(rowKeys))
			for _, rk := range rowKeys {
				cells[rk] = t.Cells[ck][rk]
			}
			t.Cells[ck] = cells
		}
	}
	t.RowKeys = rowKeys
	t.ColKeys = colKeys
}

package crosstab

import (
	"context"

	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
	"github.com/halderavik/cross-tab-tool/pkg/derive"
	"github.com/halderavik/cross-tab-tool/pkg/filter"
	"github.com/halderavik/cross-tab-tool/pkg/stats"
)

// Result is the assembled analysis response. It is constructed once per
// request and immutable afterwards.
type Result struct {
	Table               map[string]map[string]float64 `json:"table"`
	RowKeys             []string                      `json:"row_keys"`
	ColKeys             []string                      `json:"col_keys"`
	Percentages         *Percentages                  `json:"percentages,omitempty"`
	Margins             Margins                       `json:"margins"`
	Stats               stats.Results                 `json:"stats"`
	RowVars             []string                      `json:"row_vars"`
	ColVars             []string                      `json:"col_vars"`
	DroppedZeroRowsCols bool                          `json:"dropped_zero_rows_cols"`
	Notes               []string                      `json:"notes,omitempty"`
}

// Engine runs the full analysis pipeline: derived variables, subgroup
// filtering, table building, percentages, and statistics. It holds no
// per-request state; one engine serves concurrent requests.
type Engine struct {
	logger       *zap.Logger
	evaluator    *derive.Evaluator
	builder      *Builder
	defaultLevel float64
}

// NewEngine creates an analysis engine. defaultLevel is the significance
// threshold applied when a request does not set one.
func NewEngine(logger *zap.Logger, defaultLevel float64) *Engine {
	return &Engine{
		logger:       logger,
		evaluator:    derive.NewEvaluator(logger),
		builder:      NewBuilder(logger),
		defaultLevel: defaultLevel,
	}
}

// Analyze computes the cross-tabulation result for req against ds. The
// source dataset is never mutated; derived columns live on a request-local
// copy. Validation failures abort; inapplicable statistics degrade to
// per-statistic reasons inside the result.
func (e *Engine) Analyze(ctx context.Context, ds *dataset.Dataset, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	augmented, err := e.evaluator.Apply(ds, req.CustomVariables)
	if err != nil {
		return nil, err
	}
	if err := req.resolve(augmented); err != nil {
		return nil, err
	}

	rows, err := filter.Apply(augmented, req.Subgroup)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Building cross-tabulation",
		zap.Strings("row_vars", req.RowVars),
		zap.Strings("col_vars", req.ColVars),
		zap.Int("active_rows", len(rows)),
		zap.String("missing", string(req.missingPolicy())))

	table, err := e.builder.Build(augmented, req, rows)
	if err != nil {
		return nil, err
	}

	margins := ComputeMargins(table)
	percentages := ComputePercentages(table, margins, req.Display, req.decimalPlaces())
	statistics := e.runStatistics(augmented, req, table, margins, rows)

	result := &Result{
		Table:               table.Cells,
		RowKeys:             table.RowKeys,
		ColKeys:             table.ColKeys,
		Percentages:         percentages,
		Margins:             margins,
		Stats:               statistics,
		RowVars:             req.RowVars,
		ColVars:             req.ColVars,
		DroppedZeroRowsCols: table.DroppedZeros,
	}
	if table.MultiResponse {
		if table.BaseMode == BaseSelections {
			result.Notes = append(result.Notes,
				"multiple-response variable present: column percentages are computed against total selections and need not sum to 100")
		} else {
			result.Notes = append(result.Notes,
				"multiple-response variable present: column percentages are computed against the responding base, not total selections; category counts need not sum to the respondent count")
		}
	}

	e.logger.Info("Cross-tabulation completed",
		zap.Int("row_categories", len(table.RowKeys)),
		zap.Int("col_categories", len(table.ColKeys)),
		zap.Float64("grand_total", margins.GrandTotal))
	return result, nil
}

// runStatistics dispatches the requested tests. Chi-square is computed once
// and shared by the association measures that derive from it.
func (e *Engine) runStatistics(ds *dataset.Dataset, req *Request, table *Table, margins Margins, rows []int) stats.Results {
	requested := make(map[string]bool, len(req.Statistics))
	for _, s := range req.Statistics {
		requested[s] = true
	}
	if req.Significance.Enable {
		requested[StatChiSquare] = true
	}
	if len(requested) == 0 {
		return stats.Results{}
	}

	level := req.Significance.Level
	if level <= 0 {
		level = e.defaultLevel
	}
	suite := stats.NewSuite(e.logger, level)
	var results stats.Results

	needChi2 := requested[StatChiSquare] || requested[StatPhiCramer] || requested[StatContingency]
	var chi *stats.ChiSquareResult
	if needChi2 {
		chi = suite.ChiSquare(table.Observed())
	}
	if requested[StatChiSquare] {
		results.ChiSquare = chi
	}
	if requested[StatPhiCramer] {
		if chi.Chi2 == nil {
			results.CramersV = &stats.AssociationResult{Error: chi.Error}
			results.Phi = &stats.AssociationResult{Error: chi.Error}
		} else {
			results.CramersV = suite.CramersV(*chi.Chi2, margins.GrandTotal, len(table.RowKeys), len(table.ColKeys))
			results.Phi = suite.Phi(table.Observed(), *chi.Chi2, margins.GrandTotal)
		}
	}
	if requested[StatContingency] {
		if chi.Chi2 == nil {
			results.Contingency = &stats.AssociationResult{Error: chi.Error}
		} else {
			results.Contingency = suite.Contingency(*chi.Chi2, margins.GrandTotal)
		}
	}
	if requested[StatANOVA] {
		results.ANOVA = e.runANOVA(ds, req, suite, rows)
	}
	if requested[StatCorrelation] {
		results.Correlation = e.runCorrelation(ds, req, suite, rows)
	}
	return results
}

// runANOVA groups the numeric variable's values by the categorical
// variable's categories. The first row variable and first column variable
// must supply one of each.
func (e *Engine) runANOVA(ds *dataset.Dataset, req *Request, suite *stats.Suite, rows []int) *stats.ANOVAResult {
	if len(req.ColVars) == 0 {
		return &stats.ANOVAResult{Error: "requires one row and one column variable"}
	}
	rowCol, _ := ds.Column(req.RowVars[0])
	colCol, _ := ds.Column(req.ColVars[0])

	var numeric, grouping *dataset.Column
	switch {
	case rowCol.Type == dataset.Numeric && colCol.Type != dataset.Numeric:
		numeric, grouping = rowCol, colCol
	case rowCol.Type != dataset.Numeric && colCol.Type == dataset.Numeric:
		numeric, grouping = colCol, rowCol
	default:
		return &stats.ANOVAResult{Error: "requires one numeric and one categorical variable"}
	}

	byGroup := make(map[string][]float64)
	var order []string
	for _, i := range rows {
		if grouping.IsMissing(i) {
			continue
		}
		v, ok := numeric.Float(i)
		if !ok {
			continue
		}
		g := grouping.DisplayValue(i)
		if _, seen := byGroup[g]; !seen {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], v)
	}

	groups := make([]stats.GroupValues, 0, len(order))
	for _, g := range order {
		groups = append(groups, stats.GroupValues{Name: g, Values: byGroup[g]})
	}
	return suite.OneWayANOVA(groups)
}

// runCorrelation pairs the first row variable with the first column
// variable; both must be numeric.
func (e *Engine) runCorrelation(ds *dataset.Dataset, req *Request, suite *stats.Suite, rows []int) *stats.CorrelationResult {
	if len(req.ColVars) == 0 {
		return &stats.CorrelationResult{Error: "requires one row and one column variable"}
	}
	rowCol, _ := ds.Column(req.RowVars[0])
	colCol, _ := ds.Column(req.ColVars[0])
	if rowCol.Type != dataset.Numeric || colCol.Type != dataset.Numeric {
		return &stats.CorrelationResult{Error: "requires two numeric variables"}
	}

	var x, y []float64
	for _, i := range rows {
		xv, ok := rowCol.Float(i)
		if !ok {
			continue
		}
		yv, ok := colCol.Float(i)
		if !ok {
			continue
		}
		x = append(x, xv)
		y = append(y, yv)
	}
	return suite.PearsonCorrelation(x, y)
}

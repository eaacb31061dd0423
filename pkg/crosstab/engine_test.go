package crosstab

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
	"github.com/halderavik/cross-tab-tool/pkg/derive"
	"github.com/halderavik/cross-tab-tool/pkg/filter"
)

func engineDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New(6)
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "gender", Type: dataset.Categorical,
		Values: []string{"M", "M", "F", "F", "M", "F"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "region", Type: dataset.Categorical,
		Values: []string{"North", "South", "North", "North", "South", "South"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "income", Type: dataset.Numeric,
		Values: []string{"60000", "40000", "55000", "35000", "70000", "45000"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "age", Type: dataset.Numeric,
		Values: []string{"25", "45", "31", "19", "52", "38"},
	}))
	return ds
}

func TestAnalyzeValidation(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)
	ctx := context.Background()
	neg := -1

	tests := []struct {
		name string
		req  *Request
	}{
		{"empty row_vars", &Request{ColVars: []string{"gender"}}},
		{"unknown row variable", &Request{RowVars: []string{"nope"}}},
		{"unknown col variable", &Request{RowVars: []string{"gender"}, ColVars: []string{"nope"}}},
		{"unknown statistic", &Request{RowVars: []string{"gender"}, Statistics: []string{"t-test"}}},
		{"non-numeric weight", &Request{RowVars: []string{"gender"}, WeightVar: "region"}},
		{"unknown missing policy", &Request{RowVars: []string{"gender"}, Missing: "drop"}},
		{"negative decimal_places", &Request{RowVars: []string{"gender"}, DecimalPlaces: &neg}},
		{"unknown subgroup variable", &Request{RowVars: []string{"gender"}, Subgroup: filter.Subgroup{"nope": {"x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Analyze(ctx, ds, tt.req)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestAnalyzeSubgroupRestrictsGrandTotal(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:  []string{"gender"},
		Subgroup: filter.Subgroup{"region": {"North"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Margins.GrandTotal, "three rows have region North")
}

func TestAnalyzeCustomVariableAsRowVar(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars: []string{"income_group"},
		ColVars: []string{"gender"},
		CustomVariables: []derive.CustomVariable{{
			Name:       "income_group",
			Conditions: []derive.Condition{{Column: "income", Comparison: derive.GreaterThan, Value: "50000"}},
		}},
	})
	require.NoError(t, err)

	// Three incomes above 50000 (rows 0, 2, 4), three at or below.
	assert.ElementsMatch(t, []string{"0", "1"}, res.RowKeys)
	assert.Equal(t, 2.0, res.Table["M"]["1"])
	assert.Equal(t, 1.0, res.Table["M"]["0"])
	assert.Equal(t, 1.0, res.Table["F"]["1"])
	assert.Equal(t, 2.0, res.Table["F"]["0"])
	assert.False(t, ds.HasColumn("income_group"), "source dataset stays untouched")
}

func TestAnalyzeChiSquareAndAssociations(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:    []string{"gender"},
		ColVars:    []string{"region"},
		Statistics: []string{StatChiSquare, StatPhiCramer, StatContingency},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Stats.ChiSquare)
	require.NotNil(t, res.Stats.ChiSquare.Chi2)
	assert.GreaterOrEqual(t, *res.Stats.ChiSquare.Chi2, 0.0)

	require.NotNil(t, res.Stats.CramersV)
	require.NotNil(t, res.Stats.CramersV.Value)
	assert.GreaterOrEqual(t, *res.Stats.CramersV.Value, 0.0)
	assert.LessOrEqual(t, *res.Stats.CramersV.Value, 1.0)

	require.NotNil(t, res.Stats.Phi)
	require.NotNil(t, res.Stats.Contingency)
}

func TestAnalyzeDefaultSignificanceLevel(t *testing.T) {
	// 2x2 table with counts [[1,5],[5,1]]: chi2 = 16/3, p ~ 0.021.
	// Significant at 0.05, not at 0.01.
	ds := dataset.New(12)
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "gender", Type: dataset.Categorical,
		Values: []string{"M", "M", "M", "M", "M", "M", "F", "F", "F", "F", "F", "F"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "region", Type: dataset.Categorical,
		Values: []string{"North", "South", "South", "South", "South", "South",
			"North", "North", "North", "North", "North", "South"},
	}))
	req := &Request{
		RowVars:    []string{"gender"},
		ColVars:    []string{"region"},
		Statistics: []string{StatChiSquare},
	}

	res, err := NewEngine(zap.NewNop(), 0.05).Analyze(context.Background(), ds, req)
	require.NoError(t, err)
	require.NotNil(t, res.Stats.ChiSquare)
	require.NotNil(t, res.Stats.ChiSquare.P)
	assert.InDelta(t, 0.021, *res.Stats.ChiSquare.P, 5e-3)
	assert.True(t, res.Stats.ChiSquare.Significant)

	res, err = NewEngine(zap.NewNop(), 0.01).Analyze(context.Background(), ds, req)
	require.NoError(t, err)
	require.NotNil(t, res.Stats.ChiSquare)
	assert.False(t, res.Stats.ChiSquare.Significant)
	assert.Equal(t, "ns", res.Stats.ChiSquare.Marker)

	// An explicit request level wins over the engine default.
	req.Significance.Level = 0.05
	res, err = NewEngine(zap.NewNop(), 0.01).Analyze(context.Background(), ds, req)
	require.NoError(t, err)
	assert.True(t, res.Stats.ChiSquare.Significant)
}

func TestAnalyzeSignificanceEnableForcesChiSquare(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:      []string{"gender"},
		ColVars:      []string{"region"},
		Significance: Significance{Enable: true, Level: 0.01},
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Stats.ChiSquare)
}

func TestAnalyzeANOVA(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:    []string{"income"},
		ColVars:    []string{"gender"},
		Statistics: []string{StatANOVA},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Stats.ANOVA)
	assert.Empty(t, res.Stats.ANOVA.Error)
	require.NotNil(t, res.Stats.ANOVA.F)
	assert.Equal(t, 1, *res.Stats.ANOVA.DFBetween)
	assert.Equal(t, 4, *res.Stats.ANOVA.DFWithin)
}

func TestAnalyzeANOVATypeMismatchIsSkippedNotFatal(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:    []string{"gender"},
		ColVars:    []string{"region"},
		Statistics: []string{StatANOVA, StatChiSquare},
	})
	require.NoError(t, err, "an inapplicable statistic must not fail the request")
	require.NotNil(t, res.Stats.ANOVA)
	assert.Equal(t, "requires one numeric and one categorical variable", res.Stats.ANOVA.Error)
	assert.NotNil(t, res.Stats.ChiSquare, "other statistics still compute")
}

func TestAnalyzeCorrelation(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:    []string{"income"},
		ColVars:    []string{"age"},
		Statistics: []string{StatCorrelation},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Stats.Correlation)
	assert.Empty(t, res.Stats.Correlation.Error)
	require.NotNil(t, res.Stats.Correlation.R)
	assert.Equal(t, 4, *res.Stats.Correlation.DOF)
}

func TestAnalyzeCorrelationTypeMismatch(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:    []string{"gender"},
		ColVars:    []string{"region"},
		Statistics: []string{StatCorrelation},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Stats.Correlation)
	assert.Equal(t, "requires two numeric variables", res.Stats.Correlation.Error)
}

func TestAnalyzeIdempotent(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)
	req := &Request{
		RowVars:    []string{"gender"},
		ColVars:    []string{"region"},
		Statistics: []string{StatChiSquare, StatPhiCramer},
		Display:    Display{RowPct: true, ColPct: true, TotalPct: true},
	}

	first, err := e.Analyze(context.Background(), ds, req)
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), ds, req)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same request against the same dataset must serialize identically")
}

func TestAnalyzeMultiResponseNote(t *testing.T) {
	ds := dataset.New(2)
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "brands", Type: dataset.MultipleResponse,
		Values: []string{"Apple,Samsung", "Apple"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "income", Type: dataset.Categorical, Values: []string{"Low", "High"},
	}))
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars: []string{"brands"},
		ColVars: []string{"income"},
		MultipleResponse: map[string]MultiResponseSpec{
			"brands": {Type: "select_all", Options: []string{"Apple", "Samsung"}},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Notes)
	assert.Contains(t, res.Notes[0], "responding base")
}

func TestAnalyzeEmptySubgroupResult(t *testing.T) {
	ds := engineDataset(t)
	e := NewEngine(zap.NewNop(), 0.05)

	res, err := e.Analyze(context.Background(), ds, &Request{
		RowVars:  []string{"gender"},
		Subgroup: filter.Subgroup{"region": {"Mars"}},
	})
	require.NoError(t, err, "an empty result is a successful query")
	assert.Equal(t, 0.0, res.Margins.GrandTotal)
}

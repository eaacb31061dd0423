package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New(4)
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "income", Type: dataset.Numeric,
		Values: []string{"60000", "40000", "55000", "abc"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "region", Type: dataset.Categorical,
		Values: []string{"North", "South", "North East", "West"},
	}))
	require.NoError(t, ds.AppendColumn(&dataset.Column{
		Name: "age", Type: dataset.Numeric,
		Values: []string{"25", "45", "31", "19"},
	}))
	return ds
}

func TestIndicatorFromNumericThreshold(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	out, err := ev.Apply(ds, []CustomVariable{{
		Name:       "income_group",
		Conditions: []Condition{{Column: "income", Comparison: GreaterThan, Value: "50000"}},
	}})
	require.NoError(t, err)

	col, err := out.Column("income_group")
	require.NoError(t, err)
	// Non-numeric cells compare false rather than failing the request.
	assert.Equal(t, []string{"1", "0", "1", "0"}, col.Values)
	assert.Equal(t, dataset.Categorical, col.Type)
}

func TestConditionFold(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	tests := []struct {
		name       string
		conditions []Condition
		want       []string
	}{
		{
			name: "AND chain",
			conditions: []Condition{
				{Column: "income", Comparison: GreaterThan, Value: "50000"},
				{Column: "age", Comparison: LessThan, Value: "30", Operator: And},
			},
			want: []string{"1", "0", "0", "0"},
		},
		{
			name: "OR chain",
			conditions: []Condition{
				{Column: "region", Comparison: Equals, Value: "South"},
				{Column: "age", Comparison: LessThan, Value: "30", Operator: Or},
			},
			want: []string{"1", "1", "0", "1"},
		},
		{
			name: "contains is case-insensitive",
			conditions: []Condition{
				{Column: "region", Comparison: Contains, Value: "north"},
			},
			want: []string{"1", "0", "1", "0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ev.Apply(ds, []CustomVariable{{Name: "v", Conditions: tt.conditions}})
			require.NoError(t, err)
			col, err := out.Column("v")
			require.NoError(t, err)
			assert.Equal(t, tt.want, col.Values)
		})
	}
}

func TestMultiGroupFirstMatchWins(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	out, err := ev.Apply(ds, []CustomVariable{{
		Name: "age_band",
		Groups: []Group{
			{Value: "Young", Conditions: []Condition{{Column: "age", Comparison: LessThan, Value: "30"}}},
			{Value: "Adult", Conditions: []Condition{{Column: "age", Comparison: GreaterThan, Value: "0"}}},
		},
	}})
	require.NoError(t, err)

	col, err := out.Column("age_band")
	require.NoError(t, err)
	// Rows matching both groups take the first declared group.
	assert.Equal(t, []string{"Young", "Adult", "Adult", "Young"}, col.Values)
}

func TestUnknownColumn(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	_, err := ev.Apply(ds, []CustomVariable{{
		Name:       "bad",
		Conditions: []Condition{{Column: "nope", Comparison: Equals, Value: "1"}},
	}})
	var unknown *UnknownVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Column)
}

func TestUnknownComparisonRejected(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	_, err := ev.Apply(ds, []CustomVariable{{
		Name:       "bad",
		Conditions: []Condition{{Column: "age", Comparison: "regex", Value: ".*"}},
	}})
	var invalid *InvalidConditionError
	assert.ErrorAs(t, err, &invalid)
}

func TestSourceDatasetUntouched(t *testing.T) {
	ds := testDataset(t)
	ev := NewEvaluator(zap.NewNop())

	_, err := ev.Apply(ds, []CustomVariable{{
		Name:       "flag",
		Conditions: []Condition{{Column: "age", Comparison: LessThan, Value: "30"}},
	}})
	require.NoError(t, err)
	assert.False(t, ds.HasColumn("flag"))
}

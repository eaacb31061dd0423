// Package filter restricts the active row population of an analysis to a
// subgroup, such as "region = North" or "age_group in {18-24, 25-34}".
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/halderavik/cross-tab-tool/pkg/dataset"
)

// Values is the value side of a subgroup entry. On the wire it may be a
// single literal or an array of literals; both decode into a set matched
// with OR semantics.
type Values []string

// UnmarshalJSON accepts "North", 5, or ["North", "South"].
func (v *Values) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(Values, 0, len(list))
		for _, raw := range list {
			s, err := decodeScalar(raw)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		*v = out
		return nil
	}
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*v = Values{s}
	return nil
}

func decodeScalar(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return fmt.Sprintf("%t", b), nil
	}
	return "", fmt.Errorf("subgroup value %s is not a scalar or array of scalars", data)
}

// Subgroup maps column names to the values rows must match. Multiple
// columns are combined with AND; multiple values for one column with OR.
type Subgroup map[string]Values

// Apply returns the indices of rows matching the subgroup, in ascending
// order. A nil or empty subgroup retains every row. The dataset itself is
// untouched.
func Apply(ds *dataset.Dataset, sg Subgroup) ([]int, error) {
	n := ds.RowCount()
	if len(sg) == 0 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}

	type colMatch struct {
		col    *dataset.Column
		values map[string]bool
	}
	matchers := make([]colMatch, 0, len(sg))
	for name, values := range sg {
		col, err := ds.Column(name)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		matchers = append(matchers, colMatch{col: col, values: set})
	}

	var rows []int
	for i := 0; i < n; i++ {
		keep := true
		for _, m := range matchers {
			if !m.values[m.col.Values[i]] && !m.values[m.col.DisplayValue(i)] {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

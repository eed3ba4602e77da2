package verify

import (
	"context"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// keySep separates column keys inside a row key.
const keySep = "\x1f"

// keyColumns returns the distinct left-side columns of the equality predicates.
func keyColumns(b *dc.Bound) []int {
	var cols []int
	seen := make(map[int]bool)
	for _, p := range b.Predicates {
		if p.Op != dc.OpEqual || seen[p.LeftCol] {
			continue
		}
		seen[p.LeftCol] = true
		cols = append(cols, p.LeftCol)
	}
	return cols
}

// rowKey joins the canonical keys of cols for a row. The second result is
// false when any of the cells is null.
func rowKey(t *table.Table, row int, cols []int, sb *strings.Builder) (string, bool) {
	sb.Reset()
	for i, c := range cols {
		v := t.Value(row, c)
		if v.IsNull() {
			return "", false
		}
		if i > 0 {
			sb.WriteString(keySep)
		}
		sb.WriteString(v.Key())
	}
	return sb.String(), true
}

// checkAllEquality finds pairs of distinct rows that agree on every key
// column. Each unordered pair is reported once as [earlier, later].
func checkAllEquality(ctx context.Context, t *table.Table, b *dc.Bound, out *collector) error {
	cols := keyColumns(b)
	groups := make(map[string][]int)
	var sb strings.Builder

	for row := 0; row < t.NumRows(); row++ {
		if row%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		key, ok := rowKey(t, row, cols, &sb)
		if !ok {
			continue
		}
		for _, prev := range groups[key] {
			if out.add(prev, row) {
				return nil
			}
		}
		groups[key] = append(groups[key], row)
	}
	return nil
}

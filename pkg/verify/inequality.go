package verify

import (
	"context"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// extremes tracks, for one equality group, the rows holding the smallest and
// largest value of each inequality column among the rows seen so far.
// A value of -1 means no non-null value has been seen.
type extremes struct {
	minLeft, maxLeft   int
	minRight, maxRight int
}

func newExtremes() *extremes {
	return &extremes{minLeft: -1, maxLeft: -1, minRight: -1, maxRight: -1}
}

// checkOneInequality verifies !(t.A == s.A and ... and t.B op s.C) in one pass.
//
// Rows are grouped by their equality projection. A new row r violates the
// constraint with an earlier row p of its group iff r.B op p.C (r bound to t)
// or p.B op r.C (p bound to t). Both tests only need the extremal earlier
// values: for < and <= the largest C and the smallest B, for > and >= the
// smallest C and the largest B. The extremal row is reported as the witness,
// so at most two violations are reported per row.
func checkOneInequality(ctx context.Context, t *table.Table, b *dc.Bound, out *collector) error {
	ineq, _ := inequalityOf(b)
	cols := keyColumns(b)
	left := t.Columns[ineq.LeftCol].Values
	right := t.Columns[ineq.RightCol].Values
	less := ineq.Op == dc.OpLess || ineq.Op == dc.OpLessEqual

	groups := make(map[string]*extremes)
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
		g := groups[key]
		if g == nil {
			g = newExtremes()
			groups[key] = g
		}

		lv, rv := left[row], right[row]

		// r as t: r.B op p.C for some earlier p.
		if !lv.IsNull() {
			witness := g.minRight
			if less {
				witness = g.maxRight
			}
			if witness >= 0 && satisfies(lv, ineq.Op, right[witness]) {
				if out.add(row, witness) {
					return nil
				}
			}
		}

		// p as t: p.B op r.C for some earlier p.
		if !rv.IsNull() {
			witness := g.maxLeft
			if less {
				witness = g.minLeft
			}
			if witness >= 0 && satisfies(left[witness], ineq.Op, rv) {
				if out.add(witness, row) {
					return nil
				}
			}
		}

		g.track(left, right, row)
	}
	return nil
}

func (g *extremes) track(left, right []table.Value, row int) {
	if v := left[row]; !v.IsNull() {
		if g.minLeft < 0 || compare(v, left[g.minLeft]) < 0 {
			g.minLeft = row
		}
		if g.maxLeft < 0 || compare(v, left[g.maxLeft]) > 0 {
			g.maxLeft = row
		}
	}
	if v := right[row]; !v.IsNull() {
		if g.minRight < 0 || compare(v, right[g.minRight]) < 0 {
			g.minRight = row
		}
		if g.maxRight < 0 || compare(v, right[g.maxRight]) > 0 {
			g.maxRight = row
		}
	}
}

// compare orders two non-null values of compatible columns.
func compare(a, b table.Value) int {
	c, _ := a.Compare(b)
	return c
}

// satisfies evaluates a op b. Nulls and incomparable values never satisfy a predicate.
func satisfies(a table.Value, op dc.Operator, b table.Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	c, err := a.Compare(b)
	if err != nil {
		return false
	}
	return op.Eval(c)
}

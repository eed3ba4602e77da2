package verify

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// predicate is a bound predicate ready for evaluation.
type predicate struct {
	dc.BoundPredicate
	constant table.Value
}

func (p *predicate) eval(t *table.Table, rows []int) bool {
	l := t.Value(rows[p.LeftVar], p.LeftCol)
	r := p.constant
	if p.RightVar >= 0 {
		r = t.Value(rows[p.RightVar], p.RightCol)
	}
	return satisfies(l, p.Op, r)
}

// unary reports whether the predicate only looks at one tuple variable.
func (p *predicate) unary() bool {
	return p.RightVar < 0 || p.RightVar == p.LeftVar
}

func compilePredicates(b *dc.Bound) ([]*predicate, error) {
	preds := make([]*predicate, len(b.Predicates))
	for i, bp := range b.Predicates {
		p := &predicate{BoundPredicate: bp}
		switch bp.Right.Kind {
		case dc.OperandNumber:
			v, err := table.ParseNumber(bp.Right.Literal)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q in %s: %w", bp.Right.Literal, bp.Predicate, err)
			}
			p.constant = v
		case dc.OperandString:
			p.constant = table.String(bp.Right.Literal)
		}
		preds[i] = p
	}
	return preds, nil
}

// search is the state of a backtracking search over tuple variables.
type search struct {
	ctx   context.Context
	t     *table.Table
	out   *collector
	rows  []int
	steps int

	// candidates holds the rows that pass each variable's unary predicates.
	candidates [][]int
	allowed    [][]bool
	// checks holds, per variable, the binary predicates that become
	// decidable once that variable is bound.
	checks [][]*predicate
	// probe is an equality predicate joining each variable to an earlier
	// one, used to look up candidates in an index. Nil means a full scan.
	probe   []*predicate
	indexes map[int]map[string][]int
}

// checkGeneral enumerates assignments of distinct rows to variables in
// order, pruning as soon as a predicate over bound variables fails.
func checkGeneral(ctx context.Context, t *table.Table, b *dc.Bound, out *collector) error {
	preds, err := compilePredicates(b)
	if err != nil {
		return err
	}

	n := len(b.Vars)
	s := &search{
		ctx:        ctx,
		t:          t,
		out:        out,
		rows:       make([]int, n),
		candidates: make([][]int, n),
		allowed:    make([][]bool, n),
		checks:     make([][]*predicate, n),
		probe:      make([]*predicate, n),
		indexes:    make(map[int]map[string][]int),
	}

	unary := make([][]*predicate, n)
	for _, p := range preds {
		if p.unary() {
			unary[p.LeftVar] = append(unary[p.LeftVar], p)
			continue
		}
		k := p.MaxVar()
		if p.Op == dc.OpEqual && s.probe[k] == nil {
			s.probe[k] = p
			continue
		}
		s.checks[k] = append(s.checks[k], p)
	}

	for v := 0; v < n; v++ {
		if err := s.filter(v, unary[v]); err != nil {
			return err
		}
		if len(s.candidates[v]) == 0 {
			return nil
		}
	}

	_, err = s.assign(0)
	return err
}

// filter computes the rows of variable v that pass its unary predicates.
func (s *search) filter(v int, preds []*predicate) error {
	allowed := make([]bool, s.t.NumRows())
	var rows []int
	for r := 0; r < s.t.NumRows(); r++ {
		if err := s.tick(); err != nil {
			return err
		}
		s.rows[v] = r
		ok := true
		for _, p := range preds {
			if !p.eval(s.t, s.rows) {
				ok = false
				break
			}
		}
		if ok {
			allowed[r] = true
			rows = append(rows, r)
		}
	}
	s.candidates[v] = rows
	s.allowed[v] = allowed
	return nil
}

func (s *search) tick() error {
	s.steps++
	if s.steps%checkEvery == 0 {
		return s.ctx.Err()
	}
	return nil
}

// index returns rows grouped by the canonical key of column col.
func (s *search) index(col int) map[string][]int {
	if idx, ok := s.indexes[col]; ok {
		return idx
	}
	idx := make(map[string][]int)
	for r, v := range s.t.Columns[col].Values {
		if !v.IsNull() {
			idx[v.Key()] = append(idx[v.Key()], r)
		}
	}
	s.indexes[col] = idx
	return idx
}

// candidatesFor returns the rows to try for variable v given the bound
// variables before it.
func (s *search) candidatesFor(v int) []int {
	p := s.probe[v]
	if p == nil {
		return s.candidates[v]
	}
	// Normalized predicates put the earlier variable on the left.
	key := s.t.Value(s.rows[p.LeftVar], p.LeftCol)
	if key.IsNull() {
		return nil
	}
	return s.index(p.RightCol)[key.Key()]
}

// assign binds variable v and recurses. It reports whether the search should stop.
func (s *search) assign(v int) (bool, error) {
	if v == len(s.rows) {
		rows := make([]int, len(s.rows))
		copy(rows, s.rows)
		return s.out.add(rows...), nil
	}

	for _, r := range s.candidatesFor(v) {
		if err := s.tick(); err != nil {
			return true, err
		}
		if !s.allowed[v][r] || s.taken(v, r) {
			continue
		}
		s.rows[v] = r

		ok := true
		for _, p := range s.checks[v] {
			if !p.eval(s.t, s.rows) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		stop, err := s.assign(v + 1)
		if stop || err != nil {
			return stop, err
		}
	}
	return false, nil
}

// taken reports whether row r is already bound to a variable before v.
func (s *search) taken(v, r int) bool {
	for i := 0; i < v; i++ {
		if s.rows[i] == r {
			return true
		}
	}
	return false
}

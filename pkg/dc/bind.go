package dc

// Schema resolves column names to positions. *table.Table satisfies it.
type Schema interface {
	ColumnIndex(name string) (int, bool)
	ColumnNames() []string
}

// BoundPredicate is a predicate whose variables and columns are resolved to
// indices. RightVar and RightCol are -1 when the right side is a constant.
type BoundPredicate struct {
	Predicate
	LeftVar  int
	LeftCol  int
	RightVar int
	RightCol int
}

// Bound is a constraint resolved against a schema.
type Bound struct {
	DC         *DC
	Vars       []string
	Predicates []BoundPredicate
}

// Bind resolves every column reference of d against schema.
// Predicates are normalized so that the left variable comes first.
func (d *DC) Bind(schema Schema) (*Bound, error) {
	order := d.VarOrder()
	b := &Bound{
		DC:         d,
		Vars:       d.Vars(),
		Predicates: make([]BoundPredicate, 0, len(d.Predicates)),
	}

	for _, p := range d.Predicates {
		p = p.Normalize(order)
		bp := BoundPredicate{Predicate: p, RightVar: -1, RightCol: -1}

		idx, ok := schema.ColumnIndex(p.Left.Column)
		if !ok {
			return nil, &UnknownColumnError{Column: p.Left.Column, Available: schema.ColumnNames()}
		}
		bp.LeftVar = order[p.Left.Var]
		bp.LeftCol = idx

		if p.Right.IsColumn() {
			idx, ok := schema.ColumnIndex(p.Right.Column)
			if !ok {
				return nil, &UnknownColumnError{Column: p.Right.Column, Available: schema.ColumnNames()}
			}
			bp.RightVar = order[p.Right.Var]
			bp.RightCol = idx
		}

		b.Predicates = append(b.Predicates, bp)
	}

	return b, nil
}

// MaxVar returns the highest variable index the predicate references.
func (bp BoundPredicate) MaxVar() int {
	if bp.RightVar > bp.LeftVar {
		return bp.RightVar
	}
	return bp.LeftVar
}

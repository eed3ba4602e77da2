package verify

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// Strategy names a verification algorithm.
type Strategy string

// Available strategies.
const (
	StrategyAuto          Strategy = "auto"
	StrategyAllEquality   Strategy = "all-equality"
	StrategyOneInequality Strategy = "one-inequality"
	StrategyGeneral       Strategy = "general"
	// StrategySQL marks results produced by a database engine.
	StrategySQL Strategy = "sql"
)

// Strategies lists the strategies a caller may request.
var Strategies = []Strategy{StrategyAuto, StrategyAllEquality, StrategyOneInequality, StrategyGeneral}

// ParseStrategy resolves a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyAuto, nil
	}
	for _, st := range Strategies {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	names := make([]string, len(Strategies))
	for i, st := range Strategies {
		names[i] = string(st)
	}
	return "", fmt.Errorf("unknown strategy %q (expected one of: %s)", s, strings.Join(names, ", "))
}

func (v *Verifier) pickStrategy(b *dc.Bound) (Strategy, error) {
	allEq := b.DC.IsAllEquality()
	_, oneIneq := b.DC.OneInequality()

	switch v.opts.Strategy {
	case StrategyGeneral:
		return StrategyGeneral, nil
	case StrategyAllEquality:
		if !allEq {
			return "", fmt.Errorf("%w: %s needs only t.X == s.X predicates", ErrStrategyMismatch, StrategyAllEquality)
		}
		return StrategyAllEquality, nil
	case StrategyOneInequality:
		if !oneIneq {
			return "", fmt.Errorf("%w: %s needs key equalities and exactly one cross-tuple inequality", ErrStrategyMismatch, StrategyOneInequality)
		}
		if err := checkInequalityTypes(v.table, b); err != nil {
			return "", err
		}
		return StrategyOneInequality, nil
	}

	switch {
	case allEq:
		return StrategyAllEquality, nil
	case oneIneq:
		if err := checkInequalityTypes(v.table, b); err != nil {
			return "", err
		}
		return StrategyOneInequality, nil
	default:
		return StrategyGeneral, nil
	}
}

// checkInequalityTypes rejects ordering a numeric column against a string column.
func checkInequalityTypes(t *table.Table, b *dc.Bound) error {
	p, ok := inequalityOf(b)
	if !ok {
		return nil
	}
	left, right := t.Columns[p.LeftCol].Type, t.Columns[p.RightCol].Type
	if left == table.TypeNull || right == table.TypeNull {
		return nil
	}
	if left.IsNumeric() != right.IsNumeric() {
		return fmt.Errorf("%w: %s is %s, %s is %s",
			ErrIncomparableColumns, p.Left.Column, left, p.Right.Column, right)
	}
	return nil
}

// inequalityOf returns the bound ordering predicate of a one-inequality constraint.
func inequalityOf(b *dc.Bound) (dc.BoundPredicate, bool) {
	for _, p := range b.Predicates {
		if p.Op.IsInequality() && p.RightVar >= 0 {
			return p, true
		}
	}
	return dc.BoundPredicate{}, false
}

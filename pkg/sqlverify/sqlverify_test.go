package sqlverify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/internal/testutil"
	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

func schema(t *testing.T, cols ...string) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords("t", cols, nil)
	require.NoError(t, err)
	return tbl
}

func TestTranslate(t *testing.T) {
	d := dc.MustParse("!(j.Col0 == s.Col0 and t.C <= t.B)")

	q, err := Translate(d, schema(t, "Col0", "B", "C"), "fd", adapter.QuoteIdentifier, 10)
	require.NoError(t, err)

	want := `SELECT t0."__leapdc_row" AS "j", t1."__leapdc_row" AS "s", t2."__leapdc_row" AS "t"
FROM "fd" t0, "fd" t1, "fd" t2
WHERE t0."__leapdc_row" <> t1."__leapdc_row"
  AND t0."__leapdc_row" <> t2."__leapdc_row"
  AND t1."__leapdc_row" <> t2."__leapdc_row"
  AND t0."Col0" = t1."Col0"
  AND t2."C" <= t2."B"
ORDER BY t0."__leapdc_row", t1."__leapdc_row", t2."__leapdc_row"
LIMIT 10`
	assert.Equal(t, want, q.SQL)
	assert.Equal(t, []string{"j", "s", "t"}, q.Vars)
}

func TestTranslate_Literals(t *testing.T) {
	d := dc.MustParse("!(t.state == 'O''Hare' and t.age != 18 and t.score > 2.5)")

	q, err := Translate(d, schema(t, "State", "age", "score"), "people", adapter.QuoteIdentifier, 0)
	require.NoError(t, err)

	assert.Contains(t, q.SQL, `t0."State" = 'O''Hare'`, "resolves case-insensitively and escapes quotes")
	assert.Contains(t, q.SQL, `t0."age" <> 18`)
	assert.Contains(t, q.SQL, `t0."score" > 2.5`)
	assert.NotContains(t, q.SQL, "LIMIT")
	assert.NotContains(t, q.SQL, "<> t", "a single variable needs no distinctness check")
}

func TestTranslate_UnknownColumn(t *testing.T) {
	_, err := Translate(dc.MustParse("!(t.X == s.X)"), schema(t, "A"), "t", adapter.QuoteIdentifier, 0)
	var uerr *dc.UnknownColumnError
	assert.True(t, errors.As(err, &uerr))
}

func TestTranslate_MixedTypes(t *testing.T) {
	typed, err := table.FromRecords("t", []string{"Code", "Num"}, [][]string{{"x1", "9"}})
	require.NoError(t, err)

	q, err := Translate(dc.MustParse("!(t.Code == s.Num and t.Num < 5 and t.Code != 3)"), typed, "t", adapter.QuoteIdentifier, 0)
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "AND 1 = 0\n  AND t0.\"Num\" < 5\n  AND 1 = 0")

	_, err = Translate(dc.MustParse("!(t.Code < s.Num)"), typed, "t", adapter.QuoteIdentifier, 0)
	assert.ErrorIs(t, err, verify.ErrIncomparableColumns)
}

func newSQLiteVerifier(t *testing.T) *Verifier {
	t.Helper()
	adp := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{}))
	t.Cleanup(func() { _ = adp.Close() })
	return New(adp, testutil.NewTestLogger(t))
}

func TestVerifier_Check(t *testing.T) {
	ctx := context.Background()
	src := table.Source{Path: testutil.WriteTestFD(t), Delimiter: ',', HasHeader: true}

	tests := []struct {
		name      string
		expr      string
		max       int
		holds     bool
		first     []int
		count     int
		truncated bool
	}{
		{name: "key holds", expr: "!(t.Col0 == s.Col0 and t.Col1 == s.Col1)", holds: true},
		{name: "three variables", expr: "!(j.Col0 == s.Col0 and t.C <= t.B)", max: 1, first: []int{0, 1, 2}, count: 1, truncated: true},
		{name: "ordered pairs", expr: "!(t.Col1 == s.Col1)", max: -1, first: []int{0, 2}, count: 8},
		{name: "capped", expr: "!(t.Col1 == s.Col1)", max: 3, first: []int{0, 2}, count: 3, truncated: true},
		{name: "constant", expr: "!(t.B > 100)", holds: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newSQLiteVerifier(t)
			res, err := v.Check(ctx, src, tt.expr, tt.max)
			require.NoError(t, err)

			assert.Equal(t, verify.StrategySQL, res.Strategy)
			assert.Equal(t, 6, res.RowsChecked)
			assert.Equal(t, tt.holds, res.Holds)
			assert.Equal(t, tt.truncated, res.Truncated)
			if !tt.holds {
				require.Len(t, res.Violations, tt.count)
				assert.Equal(t, tt.first, res.Violations[0].Rows)
			}
		})
	}
}

// TestVerifier_MatchesMemory checks that both engines agree on whether constraints hold.
func TestVerifier_MatchesMemory(t *testing.T) {
	ctx := context.Background()
	src := table.Source{Path: testutil.WriteTestFD(t), HasHeader: true}

	mem := verify.New(verify.Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, mem.LoadData(ctx, src))

	sqlv := newSQLiteVerifier(t)
	require.NoError(t, sqlv.Adapter.LoadCSV(ctx, "fd", src))

	exprs := []string{
		"!(t.Col0 == s.Col0)",
		"!(t.Col0 == s.Col0 and t.Col1 == s.Col1)",
		"!(t.Col0 == s.Col0 and t.B < s.C)",
		"!(t.Col0 == s.Col0 and t.Col1 == s.Col1 and t.B < s.B)",
		"!(t.C > t.B)",
		"!(t.B >= s.C and t.C >= s.B)",
	}
	for _, expr := range exprs {
		d := dc.MustParse(expr)
		want, err := mem.ExecuteDC(ctx, d)
		require.NoError(t, err)
		got, err := sqlv.Verify(ctx, d, "fd", -1)
		require.NoError(t, err)
		assert.Equal(t, want.Holds, got.Holds, expr)
	}
}

func TestVerifier_MixedTypesMatchMemory(t *testing.T) {
	ctx := context.Background()
	src := table.Source{Path: testutil.WriteFile(t, "mixed.csv", "Id,Code,Num\n1,x1,9\n2,9,7\n"), HasHeader: true}

	mem := verify.New(verify.Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, mem.LoadData(ctx, src))

	sqlv := newSQLiteVerifier(t)
	require.NoError(t, sqlv.Adapter.LoadCSV(ctx, "mixed", src))

	tests := []struct {
		expr  string
		holds bool
	}{
		{"!(t.Code == s.Num)", true},
		{"!(t.Code == 9)", true},
		{"!(t.Num == '9')", true},
		{"!(t.Code != s.Num)", true},
		{"!(t.Code == '9')", false},
		{"!(t.Num > s.Num)", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			d := dc.MustParse(tt.expr)
			want, err := mem.ExecuteDC(ctx, d)
			require.NoError(t, err)
			got, err := sqlv.Verify(ctx, d, "mixed", -1)
			require.NoError(t, err)
			assert.Equal(t, tt.holds, want.Holds)
			assert.Equal(t, want.Holds, got.Holds)
		})
	}

	d := dc.MustParse("!(t.Code < s.Num)")
	_, err := mem.ExecuteDC(ctx, d)
	assert.ErrorIs(t, err, verify.ErrIncomparableColumns)
	_, err = sqlv.Verify(ctx, d, "mixed", -1)
	assert.ErrorIs(t, err, verify.ErrIncomparableColumns)
}

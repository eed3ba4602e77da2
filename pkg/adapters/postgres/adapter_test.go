package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/internal/testutil"
	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "options",
			config: adapter.Config{
				Host:     "prod.example.com",
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require", "connect_timeout": "5", "application_name": "leapdc"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin application_name=leapdc connect_timeout=5",
		},
		{
			name:     "defaults",
			config:   adapter.Config{Database: "mydb"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"fd"}, identifier("fd"))
	assert.Equal(t, pgx.Identifier{"audit", "fd"}, identifier("audit.fd"))
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.Equal(t, "postgres", adp.DialectName())
	assert.Error(t, adp.LoadCSV(ctx, "fd", table.Source{Path: "x.csv"}))
	_, err := adp.GetTableMetadata(ctx, "fd")
	assert.Error(t, err)
}

// TestAdapter_LoadCSV needs a running server, e.g.
// LEAPDC_TEST_POSTGRES_DB=postgres LEAPDC_TEST_POSTGRES_USER=postgres go test ./pkg/adapters/postgres
func TestAdapter_LoadCSV(t *testing.T) {
	database := os.Getenv("LEAPDC_TEST_POSTGRES_DB")
	if database == "" {
		t.Skip("LEAPDC_TEST_POSTGRES_DB not set")
	}

	ctx := context.Background()
	adp := New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(ctx, adapter.Config{
		Host:     os.Getenv("LEAPDC_TEST_POSTGRES_HOST"),
		Database: database,
		Username: os.Getenv("LEAPDC_TEST_POSTGRES_USER"),
		Password: os.Getenv("LEAPDC_TEST_POSTGRES_PASSWORD"),
	}))
	defer func() { _ = adp.Close() }()

	path := testutil.WriteTestFD(t)
	require.NoError(t, adp.LoadCSV(ctx, "leapdc_testfd", table.Source{Path: path, HasHeader: true}))
	defer func() { _ = adp.Exec(ctx, `DROP TABLE IF EXISTS "leapdc_testfd"`) }()

	meta, err := adp.GetTableMetadata(ctx, "leapdc_testfd")
	require.NoError(t, err)
	assert.Equal(t, []string{"Col0", "Col1", "B", "C"}, meta.ColumnNames())
	assert.Equal(t, int64(6), meta.RowCount)
	assert.Equal(t, "bigint", meta.Columns[2].Type)
}

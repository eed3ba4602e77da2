package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/pkg/adapter"

	// Engines register themselves from init()
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
)

func TestSelfRegistration(t *testing.T) {
	for _, name := range []string{"duckdb", "postgres", "sqlite"} {
		assert.True(t, adapter.IsRegistered(name), "%s should be auto-registered", name)
		assert.Contains(t, adapter.ListAdapters(), name)
	}
	assert.False(t, adapter.IsRegistered("unknown_db"))
}

func TestOpen(t *testing.T) {
	tests := []struct {
		engine  string
		dialect string
	}{
		{"duckdb", "duckdb"},
		{"sqlite", "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			adp, err := adapter.Open(context.Background(), adapter.Config{Type: tt.engine}, nil)
			require.NoError(t, err)
			defer func() { _ = adp.Close() }()

			assert.Equal(t, tt.dialect, adp.DialectName())
			assert.NoError(t, adp.Exec(context.Background(), "SELECT 1"))
		})
	}
}

func TestNewAdapter_UnknownType(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{Type: "unknown_adapter"}, nil)

	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "unknown_adapter", unknownErr.Type)
	assert.Contains(t, unknownErr.Available, "duckdb")
	assert.Contains(t, unknownErr.Available, "sqlite")
}

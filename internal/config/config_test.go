package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/pkg/adapter"

	// Registers the sqlite adapter checked by Validate.
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
)

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "data", "raw")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Empty(t, FindConfigFile(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileNameAlt), []byte("engine: memory\n"), 0o600))
	assert.Equal(t, filepath.Join(root, ConfigFileNameAlt), FindConfigFile(root))
	assert.Equal(t, root, FindProjectRoot(nested))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("engine: memory\n"), 0o600))
	assert.Equal(t, filepath.Join(root, ConfigFileName), FindConfigFile(root), "leapdc.yaml wins over leapdc.yml")
}

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   TargetConfig
		want TargetConfig
	}{
		{"duckdb", TargetConfig{Type: "duckdb"}, TargetConfig{Type: "duckdb", Schema: "main"}},
		{"postgres", TargetConfig{Type: "postgres"}, TargetConfig{Type: "postgres", Schema: "public", Host: "localhost", Port: 5432}},
		{"postgres keeps values", TargetConfig{Type: "postgres", Host: "db", Port: 6543, Schema: "dq"}, TargetConfig{Type: "postgres", Host: "db", Port: 6543, Schema: "dq"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			ApplyTargetDefaults(&got)
			assert.Equal(t, tt.want, got)
		})
	}

	ApplyTargetDefaults(nil)
}

func TestApplyServerDefaults(t *testing.T) {
	s := &ServerConfig{}
	ApplyServerDefaults(s)
	assert.Equal(t, DefaultServerAddr, s.Addr)
	assert.Equal(t, int64(DefaultMaxUploadBytes), s.MaxUploadBytes)

	s = &ServerConfig{Addr: ":9000", MaxUploadBytes: 10}
	ApplyServerDefaults(s)
	assert.Equal(t, ":9000", s.Addr)
	assert.Equal(t, int64(10), s.MaxUploadBytes)
}

func TestTargetConfig_Validate(t *testing.T) {
	assert.NoError(t, (&TargetConfig{Type: "SQLite"}).Validate())
	assert.EqualError(t, (&TargetConfig{}).Validate(), "target type is required")

	err := (&TargetConfig{Type: "oracle"}).Validate()
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
}

func TestTargetConfig_AdapterConfig(t *testing.T) {
	file := (&TargetConfig{Type: "SQLite", Database: "dq.db"}).AdapterConfig()
	assert.Equal(t, "sqlite", file.Type)
	assert.Equal(t, "dq.db", file.Path)
	assert.Empty(t, file.Database)

	pg := (&TargetConfig{Type: "postgres", Database: "warehouse", User: "dq", Port: 5432}).AdapterConfig()
	assert.Equal(t, "warehouse", pg.Database)
	assert.Empty(t, pg.Path)
	assert.Equal(t, "dq", pg.Username)
	assert.Equal(t, 5432, pg.Port)
}

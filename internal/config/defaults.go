package config

// Default configuration values.
const (
	DefaultEngine         = EngineMemory
	DefaultServerAddr     = "127.0.0.1:8321"
	DefaultMaxUploadBytes = 64 << 20
)

// DefaultSchemaForType returns the schema tables are created in for a
// database type.
func DefaultSchemaForType(dbType string) string {
	if dbType == "postgres" {
		return "public"
	}
	return "main"
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" {
		if t.Host == "" {
			t.Host = "localhost"
		}
		if t.Port == 0 {
			t.Port = 5432
		}
	}
}

// ApplyServerDefaults fills unset server values.
func ApplyServerDefaults(s *ServerConfig) {
	if s == nil {
		return
	}
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

package store

import "fmt"

// Backend selects the durable storage engine for the deposit store.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config holds configuration for Open.
type Config struct {
	Backend Backend

	// SQLitePath is the database file path (or ":memory:"), used when
	// Backend is BackendSQLite.
	SQLitePath string

	// PostgresDSN is the connection string, used when Backend is
	// BackendPostgres.
	PostgresDSN string
}

// DefaultConfig returns a SQLite-backed configuration at path.
func DefaultConfig(path string) *Config {
	return &Config{Backend: BackendSQLite, SQLitePath: path}
}

// Open initializes a Store per cfg, running migrations as needed.
func Open(cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is required")
	}

	switch cfg.Backend {
	case BackendSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return OpenSQLite(path)

	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: postgres dsn is required")
		}
		return OpenPostgres(cfg.PostgresDSN)

	default:
		return nil, fmt.Errorf("store: unsupported backend: %v", cfg.Backend)
	}
}

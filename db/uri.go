package db

import "strings"

// Backend identifies the concrete store implementation behind a session.
type Backend int

const (
	// BackendSQLite is the embedded file- or memory-backed engine.
	BackendSQLite Backend = iota

	// BackendPostgres is the networked client/server engine.
	BackendPostgres
)

func (b Backend) String() string {
	switch b {
	case BackendSQLite:
		return "sqlite"
	case BackendPostgres:
		return "postgresql"
	default:
		return "unknown"
	}
}

// memorySentinel is the one embedded configuration that cannot be opened
// from more than one handle: a second open would see a different database.
const memorySentinel = "sqlite3://:memory:"

// parseBackend determines the backend kind from a configuration URI of the
// form scheme:parameters. Unrecognized schemes fail the constructing path.
func parseBackend(uri string) (Backend, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite3:"):
		return BackendSQLite, nil
	case strings.HasPrefix(uri, "postgresql:"), strings.HasPrefix(uri, "postgres:"):
		return BackendPostgres, nil
	default:
		return 0, errorf(KindConnection, "parse uri", "unsupported database %q", uri)
	}
}

// driverDSN translates the configuration URI into the DSN expected by the
// registered driver for the given backend.
//
// SQLite URIs drop the scheme: "sqlite3://:memory:" becomes ":memory:" and
// "sqlite3:ledger.db" becomes "ledger.db". Postgres URL-style URIs pass
// through unchanged; soci-style "postgresql://dbname=x user=y" URIs are
// unwrapped to the keyword/value form lib/pq accepts.
func driverDSN(uri string, backend Backend) string {
	switch backend {
	case BackendSQLite:
		dsn := strings.TrimPrefix(uri, "sqlite3:")
		dsn = strings.TrimPrefix(dsn, "//")
		return dsn
	case BackendPostgres:
		if strings.HasPrefix(uri, "postgresql://") {
			rest := strings.TrimPrefix(uri, "postgresql://")
			if strings.Contains(rest, "=") {
				return rest
			}
			return "postgres://" + rest
		}
		return uri
	default:
		return uri
	}
}

// bindDriverName returns the driver name sqlx should use for bindvar
// rebinding. The instrumented registration names are unknown to sqlx, so
// bind types are resolved through the canonical names instead.
func bindDriverName(backend Backend) string {
	if backend == BackendPostgres {
		return "postgres"
	}
	return "sqlite3"
}

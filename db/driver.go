package db

import (
	"database/sql"
	"sync"

	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Driver registration names. Both backends are registered under private
// names so the canonical "sqlite"/"postgres" registrations stay untouched
// for other users of database/sql in the same process.
const (
	sqliteDriverName   = "ledgercore-sqlite"
	postgresDriverName = "ledgercore-postgres"
)

// Go's sql.Register is process-wide and panics on duplicate names, so
// registration runs exactly once per process no matter how many managers
// are constructed.
var driversOnce sync.Once

// registerDrivers registers both backend drivers. Idempotent and safe to
// call from any construction path, any number of times, from any goroutine.
func registerDrivers() {
	driversOnce.Do(func() {
		sql.Register(sqliteDriverName, &sqlite.Driver{})
		sql.Register(postgresDriverName, &pq.Driver{})
	})
}

func driverName(backend Backend) string {
	if backend == BackendPostgres {
		return postgresDriverName
	}
	return sqliteDriverName
}

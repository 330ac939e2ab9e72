package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDrivers(t *testing.T) {
	t.Run("given repeated registration, then no panic and both drivers listed", func(t *testing.T) {
		require.NotPanics(t, func() {
			registerDrivers()
			registerDrivers()
			registerDrivers()
		})

		drivers := sql.Drivers()
		assert.Contains(t, drivers, sqliteDriverName)
		assert.Contains(t, drivers, postgresDriverName)
	})
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, sqliteDriverName, driverName(BackendSQLite))
	assert.Equal(t, postgresDriverName, driverName(BackendPostgres))
}

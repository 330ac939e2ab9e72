package db

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparedCaching(t *testing.T) {
	t.Run("given the same text twice, then the compiled statement is shared", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		query := "SELECT balance FROM accounts WHERE accountid = ?"
		mock.ExpectPrepare(query)

		c1, err := s.Prepared(context.Background(), query)
		require.NoError(t, err)
		c1.Release()

		c2, err := s.Prepared(context.Background(), query)
		require.NoError(t, err)
		c2.Release()

		assert.Same(t, c1.cs, c2.cs)
		assert.Same(t, c1.cs.stmt, c2.cs.stmt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("given different texts, then entries are independent", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		mock.ExpectPrepare("SELECT 1")
		mock.ExpectPrepare("SELECT 2")

		c1, err := s.Prepared(context.Background(), "SELECT 1")
		require.NoError(t, err)
		defer c1.Release()

		c2, err := s.Prepared(context.Background(), "SELECT 2")
		require.NoError(t, err)
		defer c2.Release()

		assert.NotSame(t, c1.cs, c2.cs)
		assert.Len(t, s.stmts, 2)
	})

	t.Run("given a prepare failure, then no cache entry is left behind", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		mock.ExpectPrepare("SELECT nonsense").
			WillReturnError(assert.AnError)

		_, err := s.Prepared(context.Background(), "SELECT nonsense")

		require.Error(t, err)
		assert.True(t, IsQueryError(err))
		assert.Empty(t, s.stmts)
	})

	t.Run("given a cache miss, then the prepare is traced", func(t *testing.T) {
		var buf bytes.Buffer
		s, mock := newMockSession(t, BackendSQLite, WithLogger(zerolog.New(&buf)))
		mock.ExpectPrepare("SELECT 1")

		c, err := s.Prepared(context.Background(), "SELECT 1")
		require.NoError(t, err)
		c.Release()

		assert.Contains(t, buf.String(), "PREPARE: SELECT 1")
	})
}

func TestPreparedCheckout(t *testing.T) {
	t.Run("given a held checkout, then a second checkout of the same text waits", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		query := "SELECT 1"
		mock.ExpectPrepare(query)

		c1, err := s.Prepared(context.Background(), query)
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			c2, err := s.Prepared(context.Background(), query)
			if err == nil {
				c2.Release()
			}
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("second checkout proceeded while the first was held")
		case <-time.After(50 * time.Millisecond):
		}

		c1.Release()

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second checkout never proceeded after release")
		}
	})

	t.Run("given repeated release, then release is idempotent", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		mock.ExpectPrepare("SELECT 1")

		c, err := s.Prepared(context.Background(), "SELECT 1")
		require.NoError(t, err)

		require.NotPanics(t, func() {
			c.Release()
			c.Release()
		})
	})
}

func TestPreparedExecution(t *testing.T) {
	t.Run("given fresh bindings per checkout, then each execution sees its own args", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		query := "DELETE FROM peers WHERE ip = ?"
		prep := mock.ExpectPrepare(query)
		prep.ExpectExec().WithArgs("10.0.0.1").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("10.0.0.2").WillReturnResult(sqlmock.NewResult(0, 1))

		c, err := s.Prepared(context.Background(), query)
		require.NoError(t, err)
		_, err = c.ExecContext(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		c.Release()

		c, err = s.Prepared(context.Background(), query)
		require.NoError(t, err)
		_, err = c.ExecContext(context.Background(), "10.0.0.2")
		require.NoError(t, err)
		c.Release()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("given a scan target, then get populates it", func(t *testing.T) {
		s, mock := newMockSession(t, BackendSQLite)
		query := "SELECT balance FROM accounts WHERE accountid = ?"
		prep := mock.ExpectPrepare(query)
		prep.ExpectQuery().WithArgs("GABC").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2500)))

		c, err := s.Prepared(context.Background(), query)
		require.NoError(t, err)
		defer c.Release()

		var balance int64
		require.NoError(t, c.GetContext(context.Background(), &balance, "GABC"))
		assert.Equal(t, int64(2500), balance)
	})
}

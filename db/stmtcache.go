package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// cachedStmt is one statement cache entry: a backend-compiled query plan
// shared across checkouts. mu serializes checkouts of the same query text;
// different texts proceed independently.
type cachedStmt struct {
	mu    sync.Mutex
	stmt  *sqlx.Stmt
	query string
}

// Prepared returns a scoped checkout of the prepared statement for the
// exact query text, compiling and caching it on first use. The checkout
// grants exclusive use of the shared statement until Release; the statement
// itself persists in the cache for the session's lifetime. Entries are
// never evicted, so workloads that embed varying literals in query text
// grow the cache without bound; bind parameters instead.
//
// A prepare failure returns a query error and leaves no cache entry behind.
func (s *Session) Prepared(ctx context.Context, query string) (*StmtContext, error) {
	s.stmtMu.Lock()
	cs, ok := s.stmts[query]
	if !ok {
		s.trace("PREPARE: " + query)
		stmt, err := s.dbx.PreparexContext(ctx, query)
		if err != nil {
			s.stmtMu.Unlock()
			return nil, newError(KindQuery, "prepare", err)
		}
		cs = &cachedStmt{stmt: stmt, query: query}
		s.stmts[query] = cs
	}
	s.stmtMu.Unlock()

	cs.mu.Lock()
	return &StmtContext{cs: cs, s: s}, nil
}

// StmtContext is the scoped, exclusive checkout of a cached prepared
// statement. The caller binds parameters and reads results between checkout
// and Release; nothing about prior bindings is carried over, so every
// checkout must rebind before use.
type StmtContext struct {
	cs       *cachedStmt
	s        *Session
	released bool
}

// Release returns the statement to the cache. Idempotent; safe under defer.
func (c *StmtContext) Release() {
	if c.released {
		return
	}
	c.released = true
	c.cs.mu.Unlock()
}

// Query returns the exact text this statement was prepared with.
func (c *StmtContext) Query() string { return c.cs.query }

// ExecContext executes the prepared statement.
func (c *StmtContext) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	start := time.Now()
	c.s.trace(c.cs.query)
	ctx, span := c.s.startSpan(ctx, c.cs.query)

	result, err := c.cs.stmt.ExecContext(ctx, args...)

	c.s.slowCheck(c.cs.query, start)
	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "exec", err)
	}
	return result, nil
}

// GetContext executes the prepared statement and scans one row into dest.
func (c *StmtContext) GetContext(ctx context.Context, dest any, args ...any) error {
	start := time.Now()
	c.s.trace(c.cs.query)
	ctx, span := c.s.startSpan(ctx, c.cs.query)

	err := c.cs.stmt.GetContext(ctx, dest, args...)

	c.s.slowCheck(c.cs.query, start)
	finishSpan(span, err)
	if err != nil {
		return newError(KindQuery, "get", err)
	}
	return nil
}

// SelectContext executes the prepared statement and scans all rows into dest.
func (c *StmtContext) SelectContext(ctx context.Context, dest any, args ...any) error {
	start := time.Now()
	c.s.trace(c.cs.query)
	ctx, span := c.s.startSpan(ctx, c.cs.query)

	err := c.cs.stmt.SelectContext(ctx, dest, args...)

	c.s.slowCheck(c.cs.query, start)
	finishSpan(span, err)
	if err != nil {
		return newError(KindQuery, "select", err)
	}
	return nil
}

// QueryContext executes the prepared statement and returns rows.
func (c *StmtContext) QueryContext(ctx context.Context, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	c.s.trace(c.cs.query)
	ctx, span := c.s.startSpan(ctx, c.cs.query)

	rows, err := c.cs.stmt.QueryxContext(ctx, args...)

	c.s.slowCheck(c.cs.query, start)
	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "query", err)
	}
	return rows, nil
}

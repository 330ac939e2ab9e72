package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Session is one live handle to the backing store. The wrapped pool is
// pinned to a single underlying connection, so a Session behaves like the
// single stateful handle the statement cache and capture machinery assume.
//
// A Session is intended for use from one goroutine at a time. The manager's
// primary session must be externally serialized by the caller; pool
// sessions are exclusively owned between Acquire and Release.
type Session struct {
	dbx     *sqlx.DB
	id      string
	role    string
	backend Backend
	cfg     *config

	// traceMu guards the capture slot; every query text emission takes it.
	traceMu sync.Mutex
	capture *CaptureContext

	slowLog rate.Sometimes

	stmtMu sync.Mutex
	stmts  map[string]*cachedStmt
}

// openSession opens, verifies, and tunes one handle against uri.
func openSession(ctx context.Context, uri string, backend Backend, cfg *config, role string) (*Session, error) {
	raw, err := sql.Open(driverName(backend), driverDSN(uri, backend))
	if err != nil {
		return nil, newError(KindConnection, "open session", err)
	}

	// One underlying connection per session: prepared statements and
	// session-level tuning stay bound to a stable handle.
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	if err := raw.PingContext(ctx); err != nil {
		raw.Close()
		return nil, newError(KindConnection, "open session", err)
	}

	s := newSession(raw, backend, cfg, role)
	if err := s.tune(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(raw *sql.DB, backend Backend, cfg *config, role string) *Session {
	return &Session{
		dbx:     sqlx.NewDb(raw, bindDriverName(backend)),
		id:      uuid.NewString(),
		role:    role,
		backend: backend,
		cfg:     cfg,
		slowLog: rate.Sometimes{First: 5, Interval: 10 * time.Second},
		stmts:   make(map[string]*cachedStmt),
	}
}

// tune applies the backend-specific post-open settings: write-ahead-log
// journaling for the embedded engine, serializable isolation for the
// networked one.
func (s *Session) tune(ctx context.Context) error {
	var stmt string
	if s.backend == BackendSQLite {
		stmt = "PRAGMA journal_mode=WAL"
	} else {
		stmt = "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL SERIALIZABLE"
	}
	if _, err := s.ExecContext(ctx, stmt); err != nil {
		return newError(KindConnection, "tune session", err)
	}
	return nil
}

// ID returns the session's unique identifier, carried in log fields.
func (s *Session) ID() string { return s.id }

// Role names the session within the manager: "primary" or "pool-N".
func (s *Session) Role() string { return s.role }

// Backend returns the backend kind this session is connected to.
func (s *Session) Backend() Backend { return s.backend }

// Rebind transforms a query from "?" bindvars to the backend's form.
func (s *Session) Rebind(query string) string {
	return s.dbx.Rebind(query)
}

// trace emits one line of query text to the session's trace sink: the
// active capture buffer when one is attached, the logger otherwise.
func (s *Session) trace(query string) {
	text := s.cfg.sanitize(query)

	s.traceMu.Lock()
	if c := s.capture; c != nil {
		c.lines = append(c.lines, text)
		s.traceMu.Unlock()
		return
	}
	s.traceMu.Unlock()

	s.cfg.Logger.Debug().
		Str("session", s.role).
		Str("session_id", s.id).
		Msg(text)
}

// slowCheck logs operations that exceed the slow threshold. Warnings are
// rate-limited so a degraded backend does not flood the log.
func (s *Session) slowCheck(query string, start time.Time) {
	elapsed := time.Since(start)
	if elapsed < s.cfg.SlowQueryThreshold {
		return
	}
	s.slowLog.Do(func() {
		s.cfg.Logger.Warn().
			Str("session", s.role).
			Dur("elapsed", elapsed).
			Str("query", s.cfg.sanitize(query)).
			Msg("slow database operation")
	})
}

func (s *Session) startSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	return s.cfg.Tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.cfg.queryAttributes(s.backend, s.role, query)...),
	)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ExecContext executes a query without returning rows.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	s.trace(query)
	ctx, span := s.startSpan(ctx, query)

	result, err := s.dbx.ExecContext(ctx, query, args...)

	s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "exec", err)
	}
	return result, nil
}

// QueryContext executes a query and returns rows.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	s.trace(query)
	ctx, span := s.startSpan(ctx, query)

	rows, err := s.dbx.QueryxContext(ctx, query, args...)

	s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "query", err)
	}
	return rows, nil
}

// QueryRowContext executes a query expected to return at most one row.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	start := time.Now()
	s.trace(query)
	ctx, span := s.startSpan(ctx, query)

	row := s.dbx.QueryRowxContext(ctx, query, args...)

	s.slowCheck(query, start)
	finishSpan(span, nil)
	return row
}

// GetContext executes a query and scans the single result row into dest.
// A column that has no matching destination field surfaces as a query
// error here, never as undefined behavior.
func (s *Session) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	s.trace(query)
	ctx, span := s.startSpan(ctx, query)

	err := s.dbx.GetContext(ctx, dest, query, args...)

	s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return newError(KindQuery, "get", err)
	}
	return nil
}

// SelectContext executes a query and scans all result rows into dest.
func (s *Session) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	s.trace(query)
	ctx, span := s.startSpan(ctx, query)

	err := s.dbx.SelectContext(ctx, dest, query, args...)

	s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return newError(KindQuery, "select", err)
	}
	return nil
}

// BeginTx starts a transaction on this session.
func (s *Session) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	s.trace("BEGIN")
	ctx, span := s.startSpan(ctx, "BEGIN")

	tx, err := s.dbx.BeginTxx(ctx, opts)

	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "begin", err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Close releases the session's cached prepared statements and closes the
// underlying handle.
func (s *Session) Close() error {
	s.stmtMu.Lock()
	for _, cs := range s.stmts {
		cs.stmt.Close()
	}
	s.stmts = make(map[string]*cachedStmt)
	s.stmtMu.Unlock()

	return s.dbx.Close()
}

// Tx is a transaction scoped to one session. Statement text issued through
// it flows to the session trace sink like direct session queries.
type Tx struct {
	tx *sqlx.Tx
	s  *Session
}

// ExecContext executes a query inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	t.s.trace(query)
	ctx, span := t.s.startSpan(ctx, query)

	result, err := t.tx.ExecContext(ctx, query, args...)

	t.s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return nil, newError(KindQuery, "exec", err)
	}
	return result, nil
}

// GetContext executes a query inside the transaction and scans one row.
func (t *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	t.s.trace(query)
	ctx, span := t.s.startSpan(ctx, query)

	err := t.tx.GetContext(ctx, dest, query, args...)

	t.s.slowCheck(query, start)
	finishSpan(span, err)
	if err != nil {
		return newError(KindQuery, "get", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.s.trace("COMMIT")
	if err := t.tx.Commit(); err != nil {
		return newError(KindQuery, "commit", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back an already finished
// transaction is a no-op, so it is safe under defer.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	if err != nil {
		return newError(KindQuery, "rollback", err)
	}
	t.s.trace("ROLLBACK")
	return nil
}

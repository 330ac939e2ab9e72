package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DB is the session and access-path manager for the ledger's relational
// store. It owns the primary session, builds the connection pool lazily,
// and hands out operation timers. One DB is constructed per process per
// backing store; the primary session lives until Close.
type DB struct {
	uri     string
	backend Backend
	cfg     *config
	primary *Session

	poolMu sync.Mutex
	pool   *Pool
}

// Open registers the backend drivers, opens and tunes the primary session
// against uri, and returns the manager. The URI determines the backend:
// "sqlite3:" prefixes select the embedded engine, "postgres:"/"postgresql:"
// the networked one. A malformed or unreachable URI is a connection error,
// fatal to the constructing path.
func Open(ctx context.Context, uri string, opts ...Option) (*DB, error) {
	registerDrivers()
	cfg := newConfig(opts...)

	backend, err := parseBackend(uri)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info().Str("uri", uri).Msg("connecting to database")

	primary, err := openSession(ctx, uri, backend, cfg, "primary")
	if err != nil {
		return nil, err
	}

	return &DB{
		uri:     uri,
		backend: backend,
		cfg:     cfg,
		primary: primary,
	}, nil
}

// NewFromDB wraps an existing handle as a manager without opening or
// tuning anything. Intended for tests and for embedding over pre-built
// connections; pooling is unavailable on a wrapped handle.
func NewFromDB(raw *sql.DB, backend Backend, opts ...Option) *DB {
	registerDrivers()
	cfg := newConfig(opts...)
	return &DB{
		backend: backend,
		cfg:     cfg,
		primary: newSession(raw, backend, cfg, "primary"),
	}
}

// Session returns the primary session. It is exclusively owned by the
// manager and must be used from one goroutine at a time; callers that
// need concurrency check out pool sessions instead.
func (d *DB) Session() *Session { return d.primary }

// Backend returns the backend kind derived from the configured URI.
func (d *DB) Backend() Backend { return d.backend }

// IsSQLite reports whether the backend is the embedded engine.
func (d *DB) IsSQLite() bool { return d.backend == BackendSQLite }

// CanUsePool reports whether the configured backend supports a connection
// pool. The in-process memory store cannot be opened from more than one
// handle, so it cannot be pooled.
func (d *DB) CanUsePool() bool {
	return d.uri != "" && d.uri != memorySentinel
}

// Pool returns the connection pool, building it on first call. The size
// is computed once and stable for the process. A non-poolable backend
// fails with a configuration error and leaves no partial pool behind;
// the next call repeats the same failing path.
func (d *DB) Pool(ctx context.Context) (*Pool, error) {
	d.poolMu.Lock()
	defer d.poolMu.Unlock()

	if d.pool != nil {
		return d.pool, nil
	}
	if !d.CanUsePool() {
		return nil, errorf(KindConfiguration, "get pool",
			"can't create connection pool to %q", d.uri)
	}

	n := d.cfg.PoolSize
	d.cfg.Logger.Info().Int("size", n).Str("uri", d.uri).
		Msg("establishing connection pool")

	sessions := make([]*Session, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			d.cfg.Logger.Debug().Int("entry", i).Msg("opening pool entry")
			s, err := openSession(ctx, d.uri, d.backend, d.cfg, fmt.Sprintf("pool-%d", i))
			if err != nil {
				return err
			}
			sessions[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}

	d.pool = newPool(sessions, d.cfg.AcquireTimeout)
	return d.pool, nil
}

// CaptureSQL attaches a trace capture to the primary session.
func (d *DB) CaptureSQL(name string) (*CaptureContext, error) {
	return d.primary.CaptureSQL(name)
}

func (d *DB) timer(category, entity string) *TimerScope {
	return newTimerScope(d.cfg.Metrics.Timer(metricsNamespace, category, entity))
}

// InsertTimer starts a timer scope recorded under (database, insert, entity).
func (d *DB) InsertTimer(entity string) *TimerScope { return d.timer("insert", entity) }

// SelectTimer starts a timer scope recorded under (database, select, entity).
func (d *DB) SelectTimer(entity string) *TimerScope { return d.timer("select", entity) }

// DeleteTimer starts a timer scope recorded under (database, delete, entity).
func (d *DB) DeleteTimer(entity string) *TimerScope { return d.timer("delete", entity) }

// UpdateTimer starts a timer scope recorded under (database, update, entity).
func (d *DB) UpdateTimer(entity string) *TimerScope { return d.timer("update", entity) }

// Close closes the pool, if built, and then the primary session.
func (d *DB) Close() error {
	d.poolMu.Lock()
	pool := d.pool
	d.pool = nil
	d.poolMu.Unlock()

	var firstErr error
	if pool != nil {
		firstErr = pool.close()
	}
	if err := d.primary.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

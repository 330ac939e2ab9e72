// Package db manages sessions and access paths to the ledger's relational
// store. It owns the single primary session, lazily builds a fixed-size
// connection pool, caches prepared statements per session, provides scoped
// SQL trace capture, and times every category of database operation.
//
// # Quick Start
//
// Open the manager with a backend URI:
//
//	database, err := db.Open(ctx, "sqlite3:ledger.db",
//	    db.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer database.Close()
//
//	sess := database.Session()
//	_, err = sess.ExecContext(ctx, "DELETE FROM accounts WHERE accountid = ?", id)
//
// Two backends are supported. "sqlite3:" URIs select the embedded engine,
// tuned to write-ahead-log journaling; "postgres:"/"postgresql:" URIs select
// the networked engine, tuned to serializable isolation on every session.
// The special URI "sqlite3://:memory:" designates an in-process store that
// cannot be pooled.
//
// # Prepared Statements
//
// Each session caches prepared statements by exact query text. A checkout
// grants exclusive use of the shared statement for its scope:
//
//	stmt, err := sess.Prepared(ctx, "SELECT balance FROM accounts WHERE accountid = ?")
//	if err != nil {
//	    return err
//	}
//	defer stmt.Release()
//	err = stmt.GetContext(ctx, &balance, id)
//
// # Pooling
//
// The pool is built on first use, sized to the available hardware
// parallelism, and checked out through an acquire/release gate:
//
//	pool, err := database.Pool(ctx)
//	if err != nil {
//	    return err
//	}
//	err = pool.With(ctx, func(s *db.Session) error {
//	    return s.GetContext(ctx, &header, query, seq)
//	})
//
// # Capture and Timers
//
// A capture scope redirects a session's query trace into a buffer and
// emits it as one bracketed log block on exit; timer scopes record one
// duration sample per operation under (database, category, entity):
//
//	capture, _ := database.CaptureSQL("close-ledger")
//	defer capture.End()
//
//	timer := database.SelectTimer("account")
//	defer timer.Stop()
//
// The manager performs no retries: connection, configuration, and query
// errors surface synchronously to the caller, classified by Kind.
package db

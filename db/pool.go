package db

import (
	"context"
	"time"
)

// Pool is a fixed-size set of independently ownable sessions. Checkout is
// an explicit acquire/release gate: a buffered channel of free sessions
// guarantees no two callers ever hold the same entry at once. The pool
// never resizes and never reopens a failed entry; errors on a borrowed
// session surface to its borrower.
type Pool struct {
	all            []*Session
	free           chan *Session
	acquireTimeout time.Duration
}

func newPool(sessions []*Session, acquireTimeout time.Duration) *Pool {
	p := &Pool{
		all:            sessions,
		free:           make(chan *Session, len(sessions)),
		acquireTimeout: acquireTimeout,
	}
	for _, s := range sessions {
		p.free <- s
	}
	return p
}

// Size returns the pool size, fixed at construction.
func (p *Pool) Size() int { return len(p.all) }

// Acquire borrows a session, blocking until one frees, the context is
// done, or the configured acquire timeout elapses. Every successful
// Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	select {
	case s := <-p.free:
		return s, nil
	case <-ctx.Done():
		return nil, newError(KindConnection, "acquire pool session", ctx.Err())
	}
}

// Release returns a borrowed session to the pool.
func (p *Pool) Release(s *Session) {
	select {
	case p.free <- s:
	default:
		// Returning a session that was never borrowed would overflow the
		// gate; dropping it here keeps the invariant visible in tests.
		panic("db: pool release without matching acquire")
	}
}

// With borrows a session, runs fn, and releases the session on every exit
// path including panics.
func (p *Pool) With(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}

// close closes every pool entry. Called from the manager's Close.
func (p *Pool) close() error {
	var firstErr error
	for _, s := range p.all {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

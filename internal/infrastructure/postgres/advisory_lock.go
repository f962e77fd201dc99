package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	tryLockQuery = `SELECT pg_try_advisory_lock(hashtext($1))`
	unlockQuery  = `SELECT pg_advisory_unlock(hashtext($1))`
)

// AdvisoryLocker takes session-level advisory locks. Each held lock pins
// one pooled connection until it is released, because Postgres ties the
// lock to the session that took it.
type AdvisoryLocker struct {
	db  *DB
	log zerolog.Logger
}

func NewAdvisoryLocker(db *DB, log zerolog.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, log: log.With().Str("component", "advisory_lock").Logger()}
}

// TryLock returns immediately. acquired is false when another session holds key.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get connection: %w", err)
	}

	traced, st := l.db.begin(ctx, "db.AdvisoryLock", tryLockQuery)
	var acquired bool
	err = conn.QueryRowContext(traced, tryLockQuery, key).Scan(&acquired)
	st.finish(err)
	if err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be done; unlock regardless.
		traced, st := l.db.begin(context.Background(), "db.AdvisoryUnlock", unlockQuery)
		_, err := conn.ExecContext(traced, unlockQuery, key)
		st.finish(err)
		if err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("failed to release advisory lock")
			// Drop the session so the server frees the lock.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		conn.Close()
	}
	return release, true, nil
}

package batchutil

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLockBusy is returned by WaitAdvisoryLock when another session still
// holds the lock after the last retry.
var ErrLockBusy = errors.New("advisory lock is held by another session")

// LockID maps a name to a stable advisory lock identifier.
func LockID(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryAdvisoryLock tries to take a session-level advisory lock. The lock lives
// on a connection taken out of the pool, which stays checked out until unlock
// runs, so lock and unlock always hit the same session.
func TryAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, name string) (locked bool, unlock func(context.Context) error, err error) {
	if pool == nil {
		return false, nil, fmt.Errorf("pool is nil")
	}
	lockID := LockID(name)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&locked); err != nil {
		conn.Release()
		return false, nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return false, nil, nil
	}

	return true, func(ctx context.Context) error {
		defer conn.Release()
		var released bool
		if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, lockID).Scan(&released); err != nil {
			return fmt.Errorf("advisory unlock: %w", err)
		}
		if !released {
			return fmt.Errorf("advisory unlock: not held")
		}
		return nil
	}, nil
}

// WaitAdvisoryLock retries TryAdvisoryLock on b until the lock is taken, b
// gives up (ErrLockBusy) or ctx ends.
func WaitAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, name string, b backoff.BackOff) (func(context.Context) error, error) {
	var unlock func(context.Context) error
	op := func() error {
		locked, fn, err := TryAdvisoryLock(ctx, pool, name)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !locked {
			return ErrLockBusy
		}
		unlock = fn
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return unlock, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"inkwell/internal/domain/apperr"
)

// wrapErr translates driver errors into the domain error kinds while keeping
// the original error in the chain.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if kind := classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func classify(err error) error {
	if errorsIsNoRows(err) {
		return apperr.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.ErrTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.LockNotAvailable,
			pgerrcode.UniqueViolation,
			pgerrcode.CheckViolation:
			return apperr.ErrConflict
		case pgerrcode.ForeignKeyViolation:
			return apperr.ErrNotFound
		case pgerrcode.QueryCanceled:
			return apperr.ErrTransient
		}
		if pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) {
			return apperr.ErrTransient
		}
		return nil
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.ErrTransient
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return apperr.ErrTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.ErrTransient
	}
	if strings.Contains(err.Error(), "closed pool") {
		return apperr.ErrTransient
	}
	return nil
}

func errorsIsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

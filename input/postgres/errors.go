package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/state"
)

// SQLSTATE query_canceled, raised when statement_timeout fires
const queryCanceledErrorCode = "57014"

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == queryCanceledErrorCode {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceledErrorCode {
		return true
	}

	return false
}

// classifyError - Wraps driver timeouts into *state.TimeoutError, other errors pass through
func classifyError(operation string, err error) error {
	if isTimeout(err) {
		return &state.TimeoutError{Operation: operation, Err: err}
	}
	return err
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/serumledger/internal/domain"
)

// schemaErrorCodes are SQLSTATE codes meaning the relations do not have the
// shape the queries expect.
var schemaErrorCodes = map[string]bool{
	"42P01": true, // undefined_table
	"42703": true, // undefined_column
	"42804": true, // datatype_mismatch
	"42883": true, // undefined_function
}

// classify wraps err with the storage sentinel that describes it. Cancelled
// or expired contexts are always reported as unavailable.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrStorageUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && schemaErrorCodes[pgErr.Code] {
		return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrMalformedRelation, err)
	}
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

// malformed reports a row that could not be decoded into the domain model.
func malformed(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return classify(ctx, op, err)
	}
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrMalformedRelation, err)
}

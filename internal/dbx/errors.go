package dbx

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeExclusionViolation  = "23P01"
	codeInvalidTextEncoding = "22P02"
)

// TranslateError maps driver errors onto the common error kinds:
// missing rows and malformed ids become common.ErrorNotFound, unique and
// exclusion constraint violations become common.ErrConflict, anything else is
// wrapped as "db error". The original error stays reachable with errors.As,
// so transient failures remain retryable.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidTextEncoding:
			return common.ErrorNotFound
		case codeUniqueViolation, codeExclusionViolation:
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

package custom_error

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	PgErrUniqueViolation       = "23505"
	PgErrForeignKeyViolation   = "23503"
	PgErrCheckViolation        = "23514"
	PgErrNotNullViolation      = "23502"
	PgErrInvalidTextRepresent  = "22P02"
	PgErrSerializationFailure  = "40001"
	PgErrRaiseExceptionDefault = "P0001"
)

type UniqueViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23505")
}

type ForeignKeyViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23503")
}

func (f *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", f.message, f.code)
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", e.message, e.code)
}

// WrapDBError translates store failures into the error taxonomy by their
// PostgreSQL error code. Non-pq errors become internal errors.
func WrapDBError(message string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return Internal(message, err)
	}

	code := string(pqErr.Code)
	switch code {
	case PgErrUniqueViolation:
		return Wrap(KindConflict, CodeDuplicate, message, &UniqueViolationError{message: pqErr.Message, code: code})
	case PgErrForeignKeyViolation:
		return Wrap(KindDependency, CodeDependency, message, &ForeignKeyViolationError{
			message: "Value is already used by other resources " + pqErr.Message,
			code:    code,
		})
	case PgErrCheckViolation, PgErrNotNullViolation, PgErrInvalidTextRepresent:
		return Wrap(KindValidation, CodeValidation, message, err)
	default:
		return Wrap(KindInternal, CodeInternal, fmt.Sprintf("uncategorized error occurred with code %s: %s", code, message), err)
	}
}

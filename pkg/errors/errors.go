package custom_error

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindDependency Kind = "dependency"
	KindInternal   Kind = "internal"
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeQRNotFound         = "QR_NOT_FOUND"
	CodeQRAlreadyBound     = "QR_ALREADY_BOUND"
	CodeQRNotBound         = "QR_NOT_BOUND"
	CodeQRNotAllocated     = "QR_NOT_ALLOCATED"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeDefectiveMismatch  = "DEFECTIVE_MISMATCH"
	CodeBatchNotFound      = "BATCH_NOT_FOUND"
	CodeDeliveryNotFound   = "DELIVERY_NOT_FOUND"
	CodeFarmNotFound       = "FARM_NOT_FOUND"
	CodeFarmInactive       = "FARM_INACTIVE"
	CodeFarmMismatch       = "FARM_MISMATCH"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeDuplicate          = "DUPLICATE_ERROR"
	CodeDependency         = "DEPENDENCY_ERROR"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeShortCodeExhausted = "SHORT_CODE_EXHAUSTED"
	CodeUnknownEnvironment = "UNKNOWN_ENVIRONMENT"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is the single error shape handed from services to handlers.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, cause error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, cause: cause}
}

func Validation(message string) *AppError {
	return New(KindValidation, CodeValidation, message)
}

func Conflict(code, message string) *AppError {
	return New(KindConflict, code, message)
}

func NotFound(code, message string) *AppError {
	return New(KindNotFound, code, message)
}

func Internal(message string, cause error) *AppError {
	return Wrap(KindInternal, CodeInternal, message, cause)
}

// As extracts an AppError from err. Errors outside the taxonomy come back as
// internal errors.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var unique *UniqueViolationError
	if errors.As(err, &unique) {
		return Wrap(KindConflict, CodeDuplicate, unique.message, err)
	}

	var foreignKey *ForeignKeyViolationError
	if errors.As(err, &foreignKey) {
		return Wrap(KindDependency, CodeDependency, foreignKey.message, err)
	}

	return Internal("unexpected error", err)
}

func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound      = errors.New("loan not found")
	ErrInvalidAmount     = errors.New("invalid payment amount")
	ErrInvalidLoanState  = errors.New("loan is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound      = "LOAN_NOT_FOUND"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeInvalidLoanState  = "INVALID_LOAN_STATE"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDatabaseError     = "DATABASE_ERROR"
	ErrCodeCacheError        = "CACHE_ERROR"
)

// Code returns the business code carried by err, or "" when err is not a BusinessError.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidAmount,
	)
}

func WrapInvalidLoanState(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanState,
		fmt.Sprintf("Loan with ID %s is %s and accepts no further payments", loanID, status),
		ErrInvalidLoanState,
	)
}

func WrapInvalidTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot move loan from %s to %s", from, to),
		ErrInvalidTransition,
	)
}

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		message,
		ErrValidation,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

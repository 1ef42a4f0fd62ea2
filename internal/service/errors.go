package service

import (
	"errors"
	"fmt"

	"github.com/iurnickita/storecredit/internal/balance"
	"github.com/iurnickita/storecredit/internal/store"
)

var (
	ErrInsufficientData       = errors.New("insufficient data")
	ErrCustomerExists         = errors.New("customer with this phone already exists")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrLimitNotFound          = errors.New("credit limit not found")
	ErrLimitExceeded          = errors.New("credit limit exceeded")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrUnknownTransactionType = errors.New("unknown transaction type")
)

// Коды ошибок для внешнего API
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeOrderFailed     = "ORDER_FAILED"
	CodeInternalFailure = "INTERNAL_ERROR"
)

// Error carries a stable code next to the underlying cause.
type Error struct {
	Code  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Code
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewServiceError(code string, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// mapStoreError переводит ошибки хранилища в ошибки сервиса
func mapStoreError(err error, notFound error) error {
	var serviceErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &serviceErr):
		return err
	case errors.Is(err, store.ErrNoRows):
		return NewServiceError(CodeNotFound, notFound)
	case errors.Is(err, store.ErrAlreadyExists):
		return NewServiceError(CodeConflict, ErrCustomerExists)
	case errors.Is(err, store.ErrAmountIncorrect):
		return NewServiceError(CodeInvalidAmount, ErrInvalidAmount)
	case errors.Is(err, balance.ErrUnknownTransactionType):
		return NewServiceError(CodeInvalidRequest, ErrUnknownTransactionType)
	default:
		return NewServiceError(CodeInternalFailure, fmt.Errorf("store: %w", err))
	}
}

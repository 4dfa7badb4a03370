package domain

import "errors"

var (
	ErrEmptyField          = errors.New("empty field")
	ErrScoreOutOfRange     = errors.New("score out of range")
	ErrInvalidFeedbackKind = errors.New("invalid feedback kind")
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountOverflow      = errors.New("amount overflow")
	ErrInvalidOwner        = errors.New("invalid owner")
	ErrInvalidRecipient    = errors.New("invalid recipient")

	ErrDuplicateDID    = errors.New("did already registered")
	ErrAccountExists   = errors.New("account already exists for agent")
	ErrAlreadyActive   = errors.New("already active")
	ErrAlreadyInactive = errors.New("already inactive")

	ErrNotFound       = errors.New("not found")
	ErrInvalidAccount = errors.New("invalid account")

	ErrUnauthorized = errors.New("unauthorized")

	ErrInsufficientBalance = errors.New("insufficient balance")
)

type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassConflict      ErrorClass = "conflict"
	ClassNotFound      ErrorClass = "not_found"
	ClassAuthorization ErrorClass = "authorization"
	ClassResource      ErrorClass = "resource"
	ClassInternal      ErrorClass = "internal"
)

var errorClasses = []struct {
	err   error
	class ErrorClass
}{
	{ErrEmptyField, ClassValidation},
	{ErrScoreOutOfRange, ClassValidation},
	{ErrInvalidFeedbackKind, ClassValidation},
	{ErrZeroAmount, ClassValidation},
	{ErrInvalidAmount, ClassValidation},
	{ErrAmountOverflow, ClassValidation},
	{ErrInvalidOwner, ClassValidation},
	{ErrInvalidRecipient, ClassValidation},
	{ErrDuplicateDID, ClassConflict},
	{ErrAccountExists, ClassConflict},
	{ErrAlreadyActive, ClassConflict},
	{ErrAlreadyInactive, ClassConflict},
	{ErrNotFound, ClassNotFound},
	{ErrInvalidAccount, ClassNotFound},
	{ErrUnauthorized, ClassAuthorization},
	{ErrInsufficientBalance, ClassResource},
}

// ClassOf reports which part of the error taxonomy err belongs to. Anything
// that does not wrap a ledger sentinel is internal.
func ClassOf(err error) ErrorClass {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassInternal
}

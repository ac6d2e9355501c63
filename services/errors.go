package services

import (
	"errors"
	"fmt"

	"leadintake/store"
)

// Kind groups error codes by who is at fault and whether a retry can help.
type Kind string

const (
	KindToken          Kind = "TokenError"
	KindValidation     Kind = "ValidationError"
	KindStore          Kind = "StoreError"
	KindClassification Kind = "ClassificationError"
)

type Code string

const (
	CodeTokenNotFound        Code = "NOT_FOUND"
	CodeTokenExpired         Code = "EXPIRED"
	CodeTokenAlreadyConsumed Code = "ALREADY_CONSUMED"

	CodePhoneMismatch        Code = "PHONE_MISMATCH"
	CodeMissingRequiredField Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidField         Code = "INVALID_FIELD"

	CodeStoreUnavailable Code = "UNAVAILABLE"
	CodeStoreConflict    Code = "CONFLICT"

	CodeMalformedInput Code = "MALFORMED_INPUT"
)

// Steps name the saga operation that failed.
const (
	StepToken          = "token"
	StepValidation     = "validation"
	StepLead           = "lead"
	StepUserData       = "user_data"
	StepClassification = "classification"
)

// Error is the machine-readable failure returned by the token authority and the
// intake saga. Stage is the last saga state reached before the failure.
type Error struct {
	Kind  Kind
	Code  Code
	Stage string
	Step  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Kind, e.Code)
	if e.Step != "" {
		msg += " at " + e.Step
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and code, so callers can write
// errors.Is(err, services.ErrAlreadyConsumed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Retryable reports whether resubmitting (with a fresh token) can succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindStore
}

var (
	ErrTokenNotFound    = &Error{Kind: KindToken, Code: CodeTokenNotFound}
	ErrTokenExpired     = &Error{Kind: KindToken, Code: CodeTokenExpired}
	ErrAlreadyConsumed  = &Error{Kind: KindToken, Code: CodeTokenAlreadyConsumed}
	ErrPhoneMismatch    = &Error{Kind: KindValidation, Code: CodePhoneMismatch}
	ErrMissingField     = &Error{Kind: KindValidation, Code: CodeMissingRequiredField}
	ErrInvalidField     = &Error{Kind: KindValidation, Code: CodeInvalidField}
	ErrStoreUnavailable = &Error{Kind: KindStore, Code: CodeStoreUnavailable}
	ErrStoreConflict    = &Error{Kind: KindStore, Code: CodeStoreConflict}
	ErrMalformedInput   = &Error{Kind: KindClassification, Code: CodeMalformedInput}
)

func tokenError(err error) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindToken, Code: CodeTokenNotFound, Err: err}
	case errors.Is(err, store.ErrTokenExpired):
		return &Error{Kind: KindToken, Code: CodeTokenExpired, Err: err}
	case errors.Is(err, store.ErrTokenConsumed):
		return &Error{Kind: KindToken, Code: CodeTokenAlreadyConsumed, Err: err}
	}
	return storeError(err)
}

func storeError(err error) *Error {
	if errors.Is(err, store.ErrConflict) {
		return &Error{Kind: KindStore, Code: CodeStoreConflict, Err: err}
	}
	return &Error{Kind: KindStore, Code: CodeStoreUnavailable, Err: err}
}

func validationError(code Code, field string, err error) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Err: err}
}

// Every classification failure is a processing bug on stored data; the engine
// has no other failure mode.
func classificationError(err error) *Error {
	return &Error{Kind: KindClassification, Code: CodeMalformedInput, Err: err}
}

// at stamps the saga position onto err.
func at(err *Error, stage, step string) *Error {
	err.Stage = stage
	err.Step = step
	return err
}

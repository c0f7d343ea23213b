package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches domain errors by code and message so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Settlement errors.
var (
	ErrContributionNotFound   = NewError(ErrCodeNotFound, "contribution not found")
	ErrCampaignNotFound       = NewError(ErrCodeNotFound, "campaign not found")
	ErrRewardNotFound         = NewError(ErrCodeNotFound, "reward not found")
	ErrUserNotFound           = NewError(ErrCodeNotFound, "user not found")
	ErrInvalidStateTransition = NewError(ErrCodeInvalid, "invalid contribution state transition")
	ErrIntentConflict         = NewError(ErrCodeConflict, "provider intent already attached to another contribution")
	ErrRefundNotAllowed       = NewError(ErrCodeInvalid, "only succeeded contributions can be refunded")
	ErrSignatureInvalid       = NewError(ErrCodeInvalid, "webhook signature invalid")
	ErrAggregateWrite         = NewError(ErrCodeUnavailable, "aggregate write failed")
	ErrUnauthorized           = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden              = NewError(ErrCodeForbidden, "forbidden")
	ErrInvalidPayload         = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsTransient reports whether the error should be retried by redelivery.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsDomainError(err, ErrCodeUnavailable) {
		return true
	}
	var dErr *Error
	return !errors.As(err, &dErr)
}

package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeUnauthenticated         = "unauthenticated"
	ErrCodeAccessDenied            = "access_denied"
	ErrCodeInsufficientPermissions = "insufficient_permissions"
	ErrCodeInvalidTransition       = "invalid_transition"
	ErrCodeStoreUnavailable        = "store_unavailable"
	ErrCodeRoomNotFound            = "room_not_found"
	ErrCodeNotInRoom               = "not_in_room"
	ErrCodeBadRequest              = "bad_request"
	ErrCodeRateLimited             = "rate_limited"
)

// CoreError wraps a code and human-readable message. Retryable errors did not
// change any state and may be sent again.
type CoreError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewError builds a CoreError for callers outside the package.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}

var (
	errUnauthenticated = coreError(ErrCodeUnauthenticated, "authenticate first")
	errAccessDenied    = coreError(ErrCodeAccessDenied, "access denied")
	errNotPrivileged   = coreError(ErrCodeInsufficientPermissions, "insufficient permissions")
	errRoomClosed      = coreError(ErrCodeInvalidTransition, "room is closed")
)

// storeError maps a store failure to the error reported to the channel.
// Anything that is not a known sentinel is treated as the store being
// unavailable, including deadline expiry.
func storeError(err error) *CoreError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeRoomNotFound, "room not found")
	case errors.Is(err, store.ErrRoomClosed):
		return errRoomClosed
	case errors.Is(err, context.DeadlineExceeded):
		return &CoreError{Code: ErrCodeStoreUnavailable, Message: "store timed out, try again", Retryable: true}
	default:
		return &CoreError{Code: ErrCodeStoreUnavailable, Message: "store unavailable, try again", Retryable: true}
	}
}

// StoreError exposes the store error mapping to the transport layer.
func StoreError(err error) *CoreError {
	return storeError(err)
}

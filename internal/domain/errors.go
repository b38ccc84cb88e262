package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindBadRequest   ErrorKind = "BAD_REQUEST"
	KindConflict     ErrorKind = "CONFLICT"
	KindRateLimited  ErrorKind = "RATE_LIMITED"
	KindInternal     ErrorKind = "INTERNAL"
)

// HTTPStatus maps an error kind to the status code returned at the boundary.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the only error type that crosses the service boundary with a
// caller-visible message. Code overrides Kind in the response envelope when
// set (e.g. INVALID_ID).
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches sentinel AppErrors by kind and message so wrapped copies still
// compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func (e *AppError) ResponseCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func newError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Unauthorized(message string) *AppError { return newError(KindUnauthorized, message) }
func Forbidden(message string) *AppError    { return newError(KindForbidden, message) }
func NotFound(message string) *AppError     { return newError(KindNotFound, message) }
func BadRequest(message string) *AppError   { return newError(KindBadRequest, message) }
func Conflict(message string) *AppError     { return newError(KindConflict, message) }
func RateLimited(message string) *AppError  { return newError(KindRateLimited, message) }

func InvalidID(field string) *AppError {
	return &AppError{Kind: KindBadRequest, Code: "INVALID_ID", Message: fmt.Sprintf("invalid %s", field)}
}

// Internal wraps an unexpected failure. The message is never shown to callers.
func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf reports the kind of err, defaulting to INTERNAL for anything that is
// not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

var (
	ErrUnauthenticated = Unauthorized("authentication required")

	ErrActivityNotFound     = NotFound("activity not found")
	ErrJoinRequestNotFound  = NotFound("no pending join request found")
	ErrMembershipNotFound   = NotFound("membership not found")
	ErrNotificationNotFound = NotFound("notification not found")

	ErrNotHost            = Forbidden("only the host can perform this action")
	ErrNotParticipant     = Forbidden("only the host or members can view this")
	ErrCannotRemoveMember = Forbidden("you can only remove yourself")

	ErrHostCannotJoin   = BadRequest("host cannot request to join their own activity")
	ErrCannotRemoveHost = BadRequest("the host cannot be removed from the activity")
	ErrTagsRequired     = BadRequest("at least one tag is required")

	ErrActivityEnded       = Conflict("activity has already ended")
	ErrActivityFull        = Conflict("activity is full")
	ErrActivityClosed      = Conflict("activity is not accepting members")
	ErrAlreadyMember       = Conflict("already a member of this activity")
	ErrDuplicatePending    = Conflict("a pending join request already exists")
	ErrJoinRequestResolved = Conflict("join request has already been resolved")
	ErrMaxBelowMemberCount = Conflict("max_members cannot be lower than the current member count")
	ErrStaleActivity       = Conflict("activity changed concurrently, please retry")

	ErrRateLimited = RateLimited("too many requests, slow down")
)

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// DomainError is an error with a stable PM-<AREA>-<NNNN> code.
//
// The first three digits of NNNN are the HTTP status the error maps to at
// the API edge. Argument errors (PM-ARG-1xxx) map to 400.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// NewDomainError creates a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any DomainError with the same code, so copies made by
// WithDetails and WithCause still compare equal to the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// Status returns the HTTP status for the error code.
func (e *DomainError) Status() int {
	i := strings.LastIndexByte(e.Code, '-')
	n, err := strconv.Atoi(e.Code[i+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	switch s := n / 10; {
	case s < 400:
		return http.StatusBadRequest
	case s > 599:
		return http.StatusInternalServerError
	default:
		return s
	}
}

// IsDomainError reports whether err wraps a DomainError. A non-empty code
// must also match.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// Sessions.
var (
	ErrSessionNotFound = NewDomainError("PM-SESS-4040", "session not found")
	ErrSessionExpired  = NewDomainError("PM-SESS-4041", "session expired")

	// ErrAlreadyBound is returned when two connections race to resume the
	// same token and the other one won.
	ErrAlreadyBound      = NewDomainError("PM-SESS-4090", "session already bound")
	ErrInvalidTransition = NewDomainError("PM-SESS-5000", "invalid session state transition")
)

// Resume tokens.
var (
	ErrTokenMalformed = NewDomainError("PM-TOKN-4000", "malformed token")
	ErrTokenNotFound  = NewDomainError("PM-TOKN-4040", "token not found")

	// ErrTokenExpired covers both an expired session and an elapsed grace
	// window.
	ErrTokenExpired      = NewDomainError("PM-TOKN-4041", "token expired")
	ErrTokenHashConflict = NewDomainError("PM-TOKN-4090", "token hash conflict")
)

// Rooms and matchmaking.
var (
	ErrNotInRoom = NewDomainError("PM-ROOM-4090", "session not in room")

	// ErrQueueInconsistency means the pending queue disagrees with session
	// state. It is never sent to clients.
	ErrQueueInconsistency = NewDomainError("PM-MTCH-5000", "queue inconsistency")
)

// Wire protocol.
var (
	ErrMalformedMessage = NewDomainError("PM-PROT-4000", "malformed message")
	ErrUnknownMessage   = NewDomainError("PM-PROT-4001", "unknown message type")
	ErrUnsupportedCodec = NewDomainError("PM-PROT-4002", "unsupported codec")
)

// Admin API.
var (
	ErrAdminTokenMissing = NewDomainError("PM-AUTH-4010", "admin token not provided")
	ErrAdminTokenInvalid = NewDomainError("PM-AUTH-4011", "invalid admin token")
	ErrAdminDisabled     = NewDomainError("PM-AUTH-4030", "admin api disabled")
)

// System and arguments.
var (
	ErrBadRequest         = NewDomainError("PM-SYS-4000", "bad request")
	ErrRateLimited        = NewDomainError("PM-SYS-4290", "too many requests")
	ErrInternalServer     = NewDomainError("PM-SYS-5000", "internal server error")
	ErrServiceUnavailable = NewDomainError("PM-SYS-5030", "service unavailable")

	ErrInvalidArgument = NewDomainError("PM-ARG-1001", "invalid argument")
	ErrMissingArgument = NewDomainError("PM-ARG-1002", "missing required argument")
)

package domain

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	if got, want := ErrNotInRoom.Error(), "[PM-ROOM-4090] session not in room"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	got := ErrUnknownMessage.WithDetails("hello").Error()
	if want := "[PM-PROT-4001] unknown message type: hello"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDomainError_CopiesLeaveSentinelAlone(t *testing.T) {
	detailed := ErrTokenExpired.WithDetails("grace elapsed")
	caused := detailed.WithCause(io.EOF)

	if ErrTokenExpired.Details != "" || ErrTokenExpired.Cause != nil {
		t.Fatal("sentinel was mutated")
	}
	if caused.Details != "grace elapsed" {
		t.Errorf("WithCause() dropped details: %q", caused.Details)
	}
	if !errors.Is(caused, io.EOF) {
		t.Error("errors.Is(caused, io.EOF) = false, want true")
	}
	if !errors.Is(caused, ErrTokenExpired) {
		t.Error("copy should still match its sentinel")
	}
	if errors.Is(caused, ErrTokenNotFound) {
		t.Error("copy should not match another code")
	}
}

func TestDomainError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("resume: %w", ErrAlreadyBound.WithDetails("pmss-x"))
	if !errors.Is(err, ErrAlreadyBound) {
		t.Error("errors.Is() should see through fmt wrapping")
	}
	if errors.Is(err, errors.New("[PM-SESS-4090] session already bound")) {
		t.Error("a plain error with the same text must not match")
	}
}

func TestDomainError_Status(t *testing.T) {
	tests := []struct {
		err  *DomainError
		want int
	}{
		{ErrTokenMalformed, http.StatusBadRequest},
		{ErrMalformedMessage, http.StatusBadRequest},
		{ErrInvalidArgument, http.StatusBadRequest},
		{ErrAdminTokenMissing, http.StatusUnauthorized},
		{ErrAdminTokenInvalid, http.StatusUnauthorized},
		{ErrAdminDisabled, http.StatusForbidden},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrTokenExpired, http.StatusNotFound},
		{ErrAlreadyBound, http.StatusConflict},
		{ErrNotInRoom, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrInternalServer, http.StatusInternalServerError},
		{ErrServiceUnavailable, http.StatusServiceUnavailable},
		{NewDomainError("PM-X-abcd", "bad code"), http.StatusInternalServerError},
		{NewDomainError("PM-X-9990", "out of range"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := tt.err.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("relay: %w", ErrNotInRoom)

	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"any code", wrapped, "", true},
		{"matching code", wrapped, "PM-ROOM-4090", true},
		{"other code", wrapped, "PM-SESS-4040", false},
		{"plain error", io.EOF, "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDomainError(tt.err, tt.code); got != tt.want {
				t.Errorf("IsDomainError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodesUnique(t *testing.T) {
	all := []*DomainError{
		ErrSessionNotFound, ErrSessionExpired, ErrAlreadyBound, ErrInvalidTransition,
		ErrTokenMalformed, ErrTokenNotFound, ErrTokenExpired, ErrTokenHashConflict,
		ErrNotInRoom, ErrQueueInconsistency,
		ErrMalformedMessage, ErrUnknownMessage, ErrUnsupportedCodec,
		ErrAdminTokenMissing, ErrAdminTokenInvalid, ErrAdminDisabled,
		ErrBadRequest, ErrRateLimited, ErrInternalServer, ErrServiceUnavailable,
		ErrInvalidArgument, ErrMissingArgument,
	}

	seen := make(map[string]string)
	for _, e := range all {
		if !strings.HasPrefix(e.Code, "PM-") {
			t.Errorf("code %q lacks PM- prefix", e.Code)
		}
		if prev, dup := seen[e.Code]; dup {
			t.Errorf("code %s used by %q and %q", e.Code, prev, e.Message)
		}
		seen[e.Code] = e.Message
	}
}

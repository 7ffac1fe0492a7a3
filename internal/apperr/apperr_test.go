package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain_error", cause, KindInternal},
		{"conflict", Conflict("email_taken", "taken"), KindConflict},
		{"wrapped_unauthorized", fmt.Errorf("login: %w", Unauthorized("invalid_credentials", "nope")), KindUnauthorized},
		{"internal_with_cause", Internal("could not save", cause), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsKindAndCause(t *testing.T) {
	cause := errors.New("db down")
	base := NotFound("user_not_found", "User not found")

	err := base.Wrap(cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if err.Kind != KindNotFound || base.Err != nil {
		t.Fatalf("Wrap must copy, got kind=%s base.Err=%v", err.Kind, base.Err)
	}
	if err.Kind.HTTPStatus() != http.StatusNotFound {
		t.Fatalf("unexpected status %d", err.Kind.HTTPStatus())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindBadRequest:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindUnavailable:  http.StatusServiceUnavailable,
		KindUpstream:     http.StatusBadGateway,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := kind.HTTPStatus(); got != want {
			t.Fatalf("%s: got %d want %d", kind, got, want)
		}
	}
}

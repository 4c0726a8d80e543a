package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestHTTPStatusForKnownCodes(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{code: CodeValidation, status: http.StatusBadRequest},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity},
		{code: CodeRateLimit, status: http.StatusTooManyRequests},
		{code: CodeInternal, status: http.StatusInternalServerError},
		{code: CodeDependency, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.code); got != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, got)
		}
	}
}

func TestHTTPStatusUnknownCodeDefaultsToInternal(t *testing.T) {
	if got := HTTPStatus("SOMETHING_UNKNOWN"); got != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", got)
	}
}

func TestExposable(t *testing.T) {
	if Exposable(CodeInternal) {
		t.Fatalf("internal errors must not expose messages")
	}
	if Exposable(CodeDependency) {
		t.Fatalf("dependency errors must not expose messages")
	}
	if !Exposable(CodeValidation) {
		t.Fatalf("validation errors should expose messages")
	}
	if got := PublicMessage(CodeDependency); got != "dependency unavailable" {
		t.Fatalf("unexpected public message %q", got)
	}
	if got := PublicMessage(CodeInternal); got != "internal server error" {
		t.Fatalf("unexpected public message %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(CodeNotFound, nil, "gone")
	if err.Unwrap() != nil {
		t.Fatalf("nil cause should stay nil")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("As should reject non-coded errors")
	}
}

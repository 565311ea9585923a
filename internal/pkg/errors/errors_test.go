package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(KindNotFound, "CVE_NOT_FOUND", "CVE not found"),
			want: "CVE_NOT_FOUND: CVE not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("db error"), KindInternal, "DB_ERROR", "database failure"),
			want: "DB_ERROR: database failure: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, KindInternal, "CODE", "msg")

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound("NOT_FOUND", "resource not found")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != "NOT_FOUND" {
		t.Errorf("Code = %q, want NOT_FOUND", got.Code)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		retryable  bool
	}{
		{"Validation", Validation("V", "bad input"), http.StatusBadRequest, false},
		{"NotFound", NotFound("NF", "not found"), http.StatusNotFound, false},
		{"Transient", Transient("TR", "upstream hiccup"), http.StatusServiceUnavailable, true},
		{"RateLimited", RateLimited("RL", "rate limited"), http.StatusTooManyRequests, true},
		{"Permanent", Permanent("PM", "will never succeed"), http.StatusUnprocessableEntity, false},
		{"Canceled", Canceled("CN", "canceled"), 499, false},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
			if tt.err.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", tt.err.Retryable(), tt.retryable)
			}
		})
	}
}

func TestRetryableFrom(t *testing.T) {
	if !RetryableFrom(fmt.Errorf("plain error")) {
		t.Error("plain errors should be treated as retryable (internal)")
	}
	if RetryableFrom(Permanent("PM", "nope")) {
		t.Error("permanent AppError should not be retryable")
	}
}

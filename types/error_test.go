package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrOracleUnavailable, "oracle failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("gemini")

	if GetErrorCode(err) != ErrOracleUnavailable {
		t.Fatalf("expected code %s, got %s", ErrOracleUnavailable, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[ORACLE_UNAVAILABLE] oracle failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	base := NewError(ErrPageUnreachable, "load failed")
	wrapped := fmt.Errorf("journey: %w", base)

	if !IsErrorCode(wrapped, ErrPageUnreachable) {
		t.Fatalf("expected wrapped code lookup to succeed")
	}
	if IsRetryable(wrapped) {
		t.Fatalf("expected non-retryable")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for plain error")
	}
}

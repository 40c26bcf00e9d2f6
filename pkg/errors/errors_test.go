package errors

import (
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := NewValidationError(CodeInvalidAmount, "amount is not a number", nil)
	if err.Error() != "amount is not a number" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	err = err.WithSuggestion("check the amount column format")
	if err.Error() != "amount is not a number (suggestion: check the amount column format)" {
		t.Errorf("suggestion not rendered: %s", err.Error())
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		err  *ReconcilerError
		want int
	}{
		{NewFileError(CodeFileNotFound, "missing", nil), 2},
		{NewParseError(CodeInvalidFormat, "bad csv", nil), 3},
		{NewValidationError(CodeMissingField, "no date", nil), 3},
		{NewConfigurationError(CodeWeightSum, "weights", nil), 4},
		{NewReconciliationError(CodeMatchingFailed, "failed", nil), 5},
		{NewStorageError(CodeSessionNotFound, "gone", nil), 6},
		{NewConcurrencyError(CodeConcurrentRun, "busy", nil), 7},
	}

	for _, tt := range tests {
		if got := tt.err.GetExitCode(); got != tt.want {
			t.Errorf("%s: exit code %d, want %d", tt.err.Category, got, tt.want)
		}
	}

	if got := GetExitCode(fmt.Errorf("plain error")); got != 1 {
		t.Errorf("plain error should exit 1, got %d", got)
	}
}

func TestExitCodeThroughWrapping(t *testing.T) {
	inner := NewConcurrencyError(CodeConcurrentRun, "session busy", nil)
	wrapped := fmt.Errorf("running session: %w", inner)

	if got := GetExitCode(wrapped); got != 7 {
		t.Errorf("wrapped concurrency error should exit 7, got %d", got)
	}
	if !IsCategory(wrapped, CategoryConcurrency) {
		t.Error("IsCategory should see through wrapping")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError(CodeStorageFailure, "insert failed", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestWithContext(t *testing.T) {
	err := NewStorageError(CodeSessionNotFound, "no such session", nil).
		WithContext("session_id", "abc-123")

	if err.Context["session_id"] != "abc-123" {
		t.Error("context value not retained")
	}
}

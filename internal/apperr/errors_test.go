package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestBackendWrapsOnce(t *testing.T) {
	root := errors.New("connection reset")
	err := Backend("list expenses", root)
	again := Backend("load dashboard", fmt.Errorf("fetch: %w", err))

	if !errors.Is(again, root) {
		t.Fatal("expected root cause to be reachable")
	}
	var be *BackendError
	if !errors.As(again, &be) || be.Op != "list expenses" {
		t.Fatalf("expected innermost op to survive, got %+v", be)
	}
	if Backend("noop", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("render: %w", Invalid("pay_period_start", "is required"))
	if !IsValidation(err) {
		t.Fatal("expected validation error")
	}
	if IsBackend(err) {
		t.Fatal("validation must not classify as backend")
	}
	if got := Invalid("gross_pay", "is required").Error(); got != "gross_pay: is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

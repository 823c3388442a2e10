package errl

import (
	"errors"
	"strings"
	"testing"
)

var errBase = errors.New("base failure")

func TestErrorfKeepsChain(t *testing.T) {
	err := Errorf("loading record: %w", errBase)
	if !errors.Is(err, errBase) {
		t.Fatalf("expected errors.Is to find the wrapped error, got %v", err)
	}
	if !strings.Contains(err.Error(), "errl_test.go:") {
		t.Errorf("missing location prefix in %q", err.Error())
	}
	if !strings.HasSuffix(err.Error(), "loading record: base failure") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestErrorNil(t *testing.T) {
	if Error(nil) != nil {
		t.Fatal("Error(nil) must be nil")
	}
	if !errors.Is(Error(errBase), errBase) {
		t.Fatal("Error must keep the chain")
	}
}

package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("escrow: %w: custody 1", ErrNotFound), KindNotFound},
		{fmt.Errorf("escrow: %w", ErrUnauthorized), KindUnauthorized},
		{fmt.Errorf("escrow: %w", ErrInvalidState), KindInvalidState},
		{fmt.Errorf("escrow: %w", ErrInvalidArgument), KindInvalidArgument},
		{fmt.Errorf("escrow: %w: %w", ErrAssetTransferFailed, errors.New("insufficient balance")), KindAssetTransferFailed},
		{fmt.Errorf("escrow: %w", ErrPreconditionFailed), KindPreconditionFailed},
		{ErrModulePaused, KindModulePaused},
		{errors.New("disk full"), KindInternal},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "escrow"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	view := pauseMap{"escrow": true}
	if err := Guard(view, "escrow"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(view, "jobs"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
}

package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, ""},
		{errors.New("connection reset"), CodeUnknown},
		{NewError(CodeSlotFull, "full", nil), CodeSlotFull},
		{fmt.Errorf("booking: %w", Errorf(CodeSlotClosed, "closed")), CodeSlotClosed},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Fatalf("CodeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestAsErrorWrapsUnknown(t *testing.T) {
	base := errors.New("db down")
	e := AsError(base)
	if e.Code != CodeUnknown || !errors.Is(e, base) {
		t.Fatalf("unexpected %+v", e)
	}
}

func TestActorAccess(t *testing.T) {
	admin := Actor{ID: "a1", Role: RoleAdmin}
	cust := Actor{ID: "c1", Role: RoleCustomer}
	if !admin.CanAccess("c9") || !cust.CanAccess("c1") || cust.CanAccess("c2") {
		t.Fatalf("unexpected access rules")
	}
	if (Actor{Role: RoleCustomer}).Owns("") {
		t.Fatalf("empty id must not own anything")
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusConfirmed.Terminal() {
		t.Fatalf("open statuses reported terminal")
	}
	if !StatusCancelled.Terminal() || !StatusCompleted.Terminal() {
		t.Fatalf("terminal statuses not reported")
	}
}

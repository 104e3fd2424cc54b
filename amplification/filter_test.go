package amplification

import (
	"net/netip"
	"testing"
)

func TestBudgetIsThreeTimesInbound(t *testing.T) {
	f := New(3)
	remote := netip.MustParseAddrPort("203.0.113.5:4433")

	f.On(remote, 1200)
	if got, want := f.Budget(remote), uint64(3600); got != want {
		t.Fatalf("budget = %d, want %d", got, want)
	}

	f.On(remote, 1200)
	if got, want := f.Budget(remote), uint64(7200); got != want {
		t.Fatalf("budget after second datagram = %d, want %d", got, want)
	}
}

func TestRecordSentConsumesBudget(t *testing.T) {
	f := New(3)
	remote := netip.MustParseAddrPort("203.0.113.5:4433")
	f.On(remote, 1200)
	f.RecordSent(remote, 3600)
	if !f.CanSend(remote, 0) {
		t.Fatalf("expected CanSend(0) to hold exactly at budget")
	}
	if f.CanSend(remote, 1) {
		t.Fatalf("expected budget to be exhausted")
	}
}

func TestValidateLiftsLimit(t *testing.T) {
	f := New(3)
	remote := netip.MustParseAddrPort("203.0.113.5:4433")
	f.On(remote, 10)
	f.RecordSent(remote, 30)
	if f.CanSend(remote, 1) {
		t.Fatalf("expected budget exhausted before validation")
	}
	f.Validate(remote)
	if !f.CanSend(remote, 1<<20) {
		t.Fatalf("expected no limit after validation")
	}
}

func TestAccountingIsPerAddress(t *testing.T) {
	f := New(3)
	a := netip.MustParseAddrPort("203.0.113.5:4433")
	b := netip.MustParseAddrPort("203.0.113.6:4433")
	f.On(a, 1200)
	if got := f.Budget(b); got != 0 {
		t.Fatalf("unrelated address budget = %d, want 0", got)
	}
}

func TestForgetClearsState(t *testing.T) {
	f := New(3)
	remote := netip.MustParseAddrPort("203.0.113.5:4433")
	f.On(remote, 1200)
	f.Forget(remote)
	if got := f.Budget(remote); got != 0 {
		t.Fatalf("budget after Forget = %d, want 0", got)
	}
}

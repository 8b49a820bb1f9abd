package invite

import (
	"testing"

	"voicebridge/internal/telephony"
)

func TestRegistry_AddAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inv := r.Add(telephony.Invite{ProviderCallID: "CA1", From: "client:alice"})
		if inv.ID == "" {
			t.Fatalf("expected generated id")
		}
		if seen[inv.ID] {
			t.Fatalf("id reused: %s", inv.ID)
		}
		seen[inv.ID] = true
	}
	if r.Count() != 50 {
		t.Fatalf("expected 50 pending invites, got %d", r.Count())
	}
}

func TestRegistry_StripsClientPrefix(t *testing.T) {
	r := NewRegistry()
	inv := r.Add(telephony.Invite{From: "client:alice", To: "client:bob"})
	if inv.From != "alice" {
		t.Fatalf("expected client: prefix stripped from from, got %q", inv.From)
	}
	if inv.CallerName != "alice" {
		t.Fatalf("expected caller name to default to from, got %q", inv.CallerName)
	}
}

func TestRegistry_CallerNameParamOverrides(t *testing.T) {
	r := NewRegistry()
	inv := r.Add(telephony.Invite{
		From:         "client:alice",
		CustomParams: map[string]string{CallerNameParam: "Alice A."},
	})
	if inv.CallerName != "Alice A." {
		t.Fatalf("expected caller name override, got %q", inv.CallerName)
	}
}

func TestRegistry_MatchByProviderID(t *testing.T) {
	r := NewRegistry()
	r.Add(telephony.Invite{ProviderCallID: "CA1", From: "a"})
	second := r.Add(telephony.Invite{ProviderCallID: "CA2", From: "b"})

	inv, ok := r.MatchByProviderID("CA2")
	if !ok || inv.ID != second.ID {
		t.Fatalf("expected match for CA2, got ok=%v id=%q", ok, inv.ID)
	}
	if _, ok := r.MatchByProviderID("CA9"); ok {
		t.Fatalf("expected no match for unknown provider id")
	}
}

func TestRegistry_RemoveMakesInviteUnreachable(t *testing.T) {
	r := NewRegistry()
	inv := r.Add(telephony.Invite{ProviderCallID: "CA1", From: "a"})

	if !r.Remove(inv.ID) {
		t.Fatalf("expected removal to succeed")
	}
	if r.Remove(inv.ID) {
		t.Fatalf("second removal must report absence")
	}
	if _, ok := r.Get(inv.ID); ok {
		t.Fatalf("expected Get to miss after removal")
	}
	if _, ok := r.MatchByProviderID("CA1"); ok {
		t.Fatalf("expected provider match to miss after removal")
	}
}

func TestRegistry_AllPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	a := r.Add(telephony.Invite{From: "a"})
	b := r.Add(telephony.Invite{From: "b"})
	c := r.Add(telephony.Invite{From: "c"})
	r.Remove(b.ID)

	all := r.All()
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != c.ID {
		t.Fatalf("unexpected order: %+v", all)
	}
}

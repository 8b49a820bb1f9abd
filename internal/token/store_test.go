package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testCredential(t *testing.T, identity string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"exp": exp.Unix(),
		"grants": map[string]any{
			"identity": identity,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// The signature is never verified; any key works.
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign test credential: %v", err)
	}
	return s
}

func newTestStore(repo Repository) *Store {
	s := NewStore(repo, nil)
	s.clock = func() time.Time { return testNow }
	return s
}

func TestDecode_ExtractsIdentityAndExpiry(t *testing.T) {
	value := testCredential(t, "alice", testNow.Add(time.Hour))
	cred, err := Decode(value)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cred.Identity != "alice" {
		t.Fatalf("expected identity alice, got %q", cred.Identity)
	}
	if !cred.ExpiresAt.Equal(time.Unix(testNow.Add(time.Hour).Unix(), 0)) {
		t.Fatalf("unexpected expiry %v", cred.ExpiresAt)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		if _, err := Decode(value); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential for %q, got %v", value, err)
		}
	}
}

func TestDecode_RequiresExp(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"identity": "bob"})
	value, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Decode(value); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential without exp, got %v", err)
	}
}

func TestStore_SetCredentialRejectsExpired(t *testing.T) {
	s := newTestStore(NewMemoryRepo())
	value := testCredential(t, "alice", testNow.Add(-time.Minute))
	if _, err := s.SetCredential(context.Background(), value); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if s.IsValid() {
		t.Fatalf("expected store to remain empty after rejected credential")
	}
}

func TestStore_LoginLogoutValidity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepo())

	if s.IsValid() {
		t.Fatalf("fresh store must not be valid")
	}

	if _, err := s.SetCredential(ctx, testCredential(t, "alice", testNow.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !s.IsValid() {
		t.Fatalf("expected valid after login")
	}
	if id, ok := s.Identity(); !ok || id != "alice" {
		t.Fatalf("expected identity alice, got %q ok=%v", id, ok)
	}

	// Second login overwrites the first.
	if _, err := s.SetCredential(ctx, testCredential(t, "bob", testNow.Add(2*time.Hour))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id, _ := s.Identity(); id != "bob" {
		t.Fatalf("expected identity bob after relogin, got %q", id)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.IsValid() {
		t.Fatalf("expected invalid after logout")
	}
	if _, ok := s.Identity(); ok {
		t.Fatalf("identity must be absent after logout")
	}
}

func TestStore_ValidityFollowsClock(t *testing.T) {
	s := newTestStore(NewMemoryRepo())
	if _, err := s.SetCredential(context.Background(), testCredential(t, "alice", testNow.Add(time.Minute))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !s.IsValid() {
		t.Fatalf("expected valid before expiry")
	}
	s.clock = func() time.Time { return testNow.Add(2 * time.Minute) }
	if s.IsValid() {
		t.Fatalf("expected invalid after expiry passed")
	}
}

func TestStore_RestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	s1 := newTestStore(repo)
	if _, err := s1.SetCredential(ctx, testCredential(t, "alice", testNow.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := s1.SetPushToken(ctx, "push-123"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Simulated restart: a fresh store over the same repository.
	s2 := newTestStore(repo)
	if err := s2.Restore(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id, ok := s2.Identity(); !ok || id != "alice" {
		t.Fatalf("expected restored identity alice, got %q ok=%v", id, ok)
	}
	if s2.PushToken() != "push-123" {
		t.Fatalf("expected restored push token, got %q", s2.PushToken())
	}
}

func TestStore_RestoreDiscardsExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	if err := repo.SaveCredential(ctx, testCredential(t, "alice", testNow.Add(-time.Hour))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	s := newTestStore(repo)
	if err := s.Restore(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.IsValid() {
		t.Fatalf("expected expired persisted credential to be discarded")
	}
}

package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store holds the current access credential and the push-registration token.
//
// Concurrency invariant: the credential is a single mutable cell; readers
// observe either the previous or the next value fully, never a partial update.
// Persistence is write-through so the credential survives process restarts.
type Store struct {
	mu   sync.Mutex
	repo Repository
	log  *slog.Logger

	cred      Credential
	pushToken string

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewStore(repo Repository, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, log: log, clock: time.Now}
}

// Restore loads the persisted credential and push token. A persisted
// credential that no longer decodes or has expired is discarded silently;
// restart must never resurrect a stale login.
func (s *Store) Restore(ctx context.Context) error {
	value, err := s.repo.LoadCredential(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	pushToken, err := s.repo.LoadPushToken(ctx)
	if err != nil {
		return fmt.Errorf("load push token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushToken = pushToken
	if value == "" {
		return nil
	}
	cred, err := Decode(value)
	if err != nil || !cred.Valid(s.clock()) {
		s.log.Info("discarding stale persisted credential")
		return nil
	}
	s.cred = cred
	return nil
}

// SetCredential validates, stores, and persists a new credential. Invalid or
// expired credentials are rejected before anything is overwritten.
func (s *Store) SetCredential(ctx context.Context, value string) (Credential, error) {
	cred, err := Decode(value)
	if err != nil {
		return Credential{}, err
	}

	s.mu.Lock()
	if !cred.Valid(s.clock()) {
		s.mu.Unlock()
		return Credential{}, fmt.Errorf("%w: expired", ErrInvalidCredential)
	}
	s.cred = cred
	s.mu.Unlock()

	if err := s.repo.SaveCredential(ctx, value); err != nil {
		return Credential{}, fmt.Errorf("persist credential: %w", err)
	}
	return cred, nil
}

// Credential returns the stored credential if it is currently valid.
func (s *Store) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cred.Valid(s.clock()) {
		return Credential{}, false
	}
	return s.cred, true
}

// IsValid reports whether a non-expired credential is stored.
func (s *Store) IsValid() bool {
	_, ok := s.Credential()
	return ok
}

// Identity returns the identity claim of the current credential. Only
// meaningful while the credential is valid.
func (s *Store) Identity() (string, bool) {
	cred, ok := s.Credential()
	if !ok {
		return "", false
	}
	return cred.Identity, true
}

// SetPushToken stores and persists the push-registration token.
func (s *Store) SetPushToken(ctx context.Context, t string) error {
	s.mu.Lock()
	s.pushToken = t
	s.mu.Unlock()
	if err := s.repo.SavePushToken(ctx, t); err != nil {
		return fmt.Errorf("persist push token: %w", err)
	}
	return nil
}

// PushToken returns the stored push-registration token, or "".
func (s *Store) PushToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushToken
}

// Clear removes the credential and the push-token association, in memory and
// in the persisted store. The caller is responsible for tearing down any
// active session; the store only owns the credential cell.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cred = Credential{}
	s.pushToken = ""
	s.mu.Unlock()
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted tokens: %w", err)
	}
	return nil
}

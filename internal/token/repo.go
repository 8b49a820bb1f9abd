package token

import (
	"context"
	"sync"
)

// Repository persists the credential and push token across process restarts.
// Load methods return "" when nothing is stored.
type Repository interface {
	SaveCredential(ctx context.Context, value string) error
	LoadCredential(ctx context.Context) (string, error)
	SavePushToken(ctx context.Context, value string) error
	LoadPushToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu         sync.Mutex
	credential string
	pushToken  string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) SaveCredential(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = value
	return nil
}

func (r *MemoryRepo) LoadCredential(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credential, nil
}

func (r *MemoryRepo) SavePushToken(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushToken = value
	return nil
}

func (r *MemoryRepo) LoadPushToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushToken, nil
}

func (r *MemoryRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = ""
	r.pushToken = ""
	return nil
}

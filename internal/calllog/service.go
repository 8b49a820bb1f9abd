package calllog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call history entries.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

var ErrInvalidEntry = errors.New("calllog: invalid entry")

// Service records call history. Callers treat recording as best-effort and
// log failures rather than propagating them into call flows.
type Service struct {
	repo  Repository
	limit int
	clock func() time.Time
}

// NewService returns a history service that lists at most limit entries.
func NewService(repo Repository, limit int) *Service {
	if limit <= 0 {
		limit = 100
	}
	return &Service{repo: repo, limit: limit, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("calllog: repository not configured")
	}
	if e.CallID == "" || e.Kind == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record is the shorthand most call sites use.
func (s *Service) Record(ctx context.Context, callID string, kind Kind, counterpart, detail string) error {
	return s.Append(ctx, Entry{
		CallID:      callID,
		Kind:        kind,
		Counterpart: counterpart,
		Detail:      detail,
	})
}

// Recent returns the newest entries, newest first, capped by the service
// limit.
func (s *Service) Recent(ctx context.Context) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("calllog: repository not configured")
	}
	return s.repo.ListRecent(ctx, s.limit)
}

package calllog

import (
	"context"
	"errors"
	"testing"

	"voicebridge/internal/invite"
	"voicebridge/internal/orchestrator"
	"voicebridge/pkg/logger"
)

// Compile-time check that the recorder satisfies the event contract.
var _ orchestrator.Listener = (*Recorder)(nil)

func TestRecorderJournalsCallLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(NewService(repo, 50), logger.New("test"))

	rec.OnInviteReceived(invite.Invite{ID: "inv-1", CallerName: "Carol"})
	rec.OnCallConnected("CA01")
	rec.OnCallDisconnected("CA01", errors.New("network lost"))

	entries, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest first.
	if entries[0].Kind != KindCallEnded || entries[0].Detail != "network lost" {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if entries[1].Kind != KindCallConnected || entries[1].CallID != "CA01" {
		t.Fatalf("entries[1] = %+v", entries[1])
	}
	if entries[2].Kind != KindInviteReceived || entries[2].Counterpart != "Carol" {
		t.Fatalf("entries[2] = %+v", entries[2])
	}
}

func TestRecorderSkipsTransientStates(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(NewService(repo, 50), logger.New("test"))

	rec.OnCallReconnecting("CA01", errors.New("blip"))
	rec.OnCallQualityWarnings("CA01", []string{"high-jitter"})
	rec.OnCallReconnected("CA01")

	entries, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != KindCallReconnected {
		t.Fatalf("entries = %+v, want only the reconnected entry", entries)
	}
}

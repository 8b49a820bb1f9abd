// Package notification translates incoming-call notification actions into
// orchestrator operations. The notification surface can outlive the client
// UI, so every entry point tolerates the invite being gone already.
package notification

import (
	"context"
	"log/slog"

	"voicebridge/internal/orchestrator"
)

// Bridge handles taps on the incoming-call surface.
type Bridge struct {
	facade *orchestrator.Facade
	log    *slog.Logger
}

func NewBridge(facade *orchestrator.Facade, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{facade: facade, log: log}
}

// AcceptFromNotification answers the invite behind a notification's accept
// action. The permission flow may run first; done fires once it resolves.
func (b *Bridge) AcceptFromNotification(ctx context.Context, inviteID string, done func(sid string, err error)) {
	b.log.Info("accept from notification", "invite_id", inviteID)
	b.facade.AcceptCall(ctx, inviteID, done)
}

// RejectFromNotification declines the invite behind a notification's reject
// action.
func (b *Bridge) RejectFromNotification(ctx context.Context, inviteID string) error {
	b.log.Info("reject from notification", "invite_id", inviteID)
	return b.facade.RejectCall(ctx, inviteID)
}

// HandleRelaunch runs when a notification tap brings the client back up: the
// invite event is replayed so the fresh UI can render the incoming call. A
// missing invite is fine; the caller falls back to the status snapshot.
func (b *Bridge) HandleRelaunch(inviteID string) {
	if err := b.facade.ReplayInvite(inviteID); err != nil {
		b.log.Info("relaunch invite no longer pending", "invite_id", inviteID)
	}
}

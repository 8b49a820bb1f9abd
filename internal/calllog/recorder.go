package calllog

import (
	"context"
	"log/slog"

	"voicebridge/internal/invite"
	"voicebridge/internal/orchestrator"
)

// Recorder subscribes to orchestration events and journals them. Recording
// is best-effort: failures are logged and never propagate into call flows.
type Recorder struct {
	svc *Service
	log *slog.Logger
}

func NewRecorder(svc *Service, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{svc: svc, log: log}
}

func (r *Recorder) record(callID string, kind Kind, counterpart, detail string) {
	if err := r.svc.Record(context.Background(), callID, kind, counterpart, detail); err != nil {
		r.log.Warn("call history append failed", "call_id", callID, "kind", kind, "err", err)
	}
}

func (r *Recorder) OnRegistrationSuccess(identity string) {
	r.record(identity, KindRegistration, "", "registered")
}

func (r *Recorder) OnRegistrationFailure(err error) {
	r.record("registration", KindRegistration, "", err.Error())
}

func (r *Recorder) OnInviteReceived(inv invite.Invite) {
	r.record(inv.ID, KindInviteReceived, inv.CallerName, "")
}

func (r *Recorder) OnInviteCancelled(inv invite.Invite, reason orchestrator.CancelReason) {
	r.record(inv.ID, KindInviteCancelled, inv.CallerName, string(reason))
}

func (r *Recorder) OnCallRinging(sid string) {
	r.record(sid, KindCallRinging, "", "")
}

func (r *Recorder) OnCallConnected(sid string) {
	r.record(sid, KindCallConnected, "", "")
}

func (r *Recorder) OnCallReconnecting(sid string, cause error) {
	// The reconnected entry carries the resolution; the transient state is
	// not journaled on its own.
}

func (r *Recorder) OnCallReconnected(sid string) {
	r.record(sid, KindCallReconnected, "", "")
}

func (r *Recorder) OnCallDisconnected(sid string, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	r.record(sid, KindCallEnded, "", detail)
}

func (r *Recorder) OnCallQualityWarnings(sid string, warnings []string) {}

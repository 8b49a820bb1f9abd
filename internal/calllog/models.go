package calllog

import "time"

// Entry is an immutable, append-only call history record.
//
// Invariants:
// - Entries are never updated or deleted.
// - call_id groups every entry belonging to one call; invite entries use the
//   invite id until a call exists.
// - Recording is best-effort; call flows must never block on history failures.

type Entry struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	// Kind indicates the lifecycle moment this entry records.
	Kind Kind `json:"kind" db:"kind"`

	// Counterpart is the remote party identity, when known.
	Counterpart string `json:"counterpart,omitempty" db:"counterpart"`

	// Detail is a short human-readable description, e.g. a disconnect cause.
	Detail string `json:"detail,omitempty" db:"detail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Kind string

const (
	KindInviteReceived  Kind = "invite_received"
	KindInviteCancelled Kind = "invite_cancelled"
	KindCallRinging     Kind = "call_ringing"
	KindCallConnected   Kind = "call_connected"
	KindCallReconnected Kind = "call_reconnected"
	KindCallEnded       Kind = "call_ended"
	KindRegistration    Kind = "registration"
)

package telephony

import (
	"context"
	"errors"
)

// Signaling defines the provider-agnostic interface to the calling SDK's
// transport/signaling layer.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; provider raw payloads stay
//   inside the adapter.
// - Connect/Accept latency is unbounded and user-controlled; lifecycle results
//   arrive through CallEvents, never by blocking.
type Signaling interface {
	Name() string

	// Connect places an outgoing call. The returned handle may not carry a
	// provider sid yet; the sid is adopted from the first lifecycle event.
	Connect(ctx context.Context, credential string, params map[string]string, events CallEvents) (Call, error)

	// Accept answers a pending inbound invite.
	Accept(ctx context.Context, inv Invite, credential string, events CallEvents) (Call, error)

	// Reject declines a pending inbound invite without media setup.
	Reject(ctx context.Context, inv Invite) error

	// Register and Unregister bind a push-delivery token to the credential's
	// identity so invites can reach this device.
	Register(ctx context.Context, credential, pushToken string) error
	Unregister(ctx context.Context, credential, pushToken string) error
}

// ErrUnavailable reports that the signaling layer cannot service requests
// (SDK not initialized, transport down).
var ErrUnavailable = errors.New("signaling unavailable")

// Invite is the signaling layer's view of an inbound call.
type Invite struct {
	// ProviderCallID is the provider's unique identifier for this call.
	// Cancellation notifications arrive keyed by this id.
	ProviderCallID string

	// From and To are client identities or E.164 where possible.
	From string
	To   string

	// CustomParams carries application-defined key/value pairs set by the
	// caller side (display name overrides and the like).
	CustomParams map[string]string
}

// Call is a live call handle owned by the signaling layer.
type Call interface {
	// Sid returns the provider-assigned call sid, or "" before assignment.
	Sid() string

	Mute(muted bool) error
	Hold(onHold bool) error
	Disconnect() error
}

// CallEvents receives asynchronous lifecycle callbacks for a single call.
// Callbacks for one call are delivered in causal order; implementations must
// not block the delivering goroutine.
type CallEvents interface {
	OnRinging(sid string)
	OnConnected(sid string)
	OnReconnecting(sid string, cause error)
	OnReconnected(sid string)
	OnDisconnected(sid string, cause error)
	OnQualityWarnings(sid string, current []string)
}

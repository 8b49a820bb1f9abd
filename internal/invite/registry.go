// Package invite tracks pending inbound call invites between push delivery
// and the user's accept/reject decision.
package invite

import (
	"errors"
	"strings"
	"sync"
	"time"

	"voicebridge/internal/telephony"

	"github.com/google/uuid"
)

// ErrNotFound reports an invite id that is unknown or already removed.
var ErrNotFound = errors.New("invite not found")

// CallerNameParam is the custom parameter callers may set to override the
// displayed name.
const CallerNameParam = "CallerName"

// Invite is a pending inbound call awaiting accept or reject.
type Invite struct {
	// ID is the locally generated identifier. Never reused within a process
	// lifetime.
	ID string

	From       string
	To         string
	CallerName string

	CustomParams map[string]string

	// ProviderCallID matches cancellation notifications, which arrive keyed
	// by the provider's id rather than ours.
	ProviderCallID string

	ReceivedAt time.Time
}

// Registry owns pending invites. Push delivery and the UI-facing surface
// mutate it concurrently; a single mutex serializes access.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]Invite
	order []string

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]Invite),
		clock: time.Now,
	}
}

// Add registers an inbound invite under a fresh unique id and returns the
// stored form. Caller identities carry a transport prefix ("client:") that is
// stripped for display.
func (r *Registry) Add(t telephony.Invite) Invite {
	inv := Invite{
		ID:             uuid.NewString(),
		From:           stripClientPrefix(t.From),
		To:             t.To,
		CallerName:     displayName(t),
		CustomParams:   t.CustomParams,
		ProviderCallID: t.ProviderCallID,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	inv.ReceivedAt = r.clock()
	r.byID[inv.ID] = inv
	r.order = append(r.order, inv.ID)
	return inv
}

// Get returns the invite for id.
func (r *Registry) Get(id string) (Invite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byID[id]
	return inv, ok
}

// Remove deletes the invite for id. Reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// MatchByProviderID resolves a provider call id to the stored invite. Linear
// scan: the pending set is tiny (a handful at most).
func (r *Registry) MatchByProviderID(providerCallID string) (Invite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if inv := r.byID[id]; inv.ProviderCallID == providerCallID {
			return inv, true
		}
	}
	return Invite{}, false
}

// Count returns the number of pending invites.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// All returns pending invites in insertion order.
func (r *Registry) All() []Invite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invite, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Clear drops all pending invites (logout path).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]Invite)
	r.order = nil
}

func displayName(t telephony.Invite) string {
	if name, ok := t.CustomParams[CallerNameParam]; ok && name != "" {
		return stripClientPrefix(name)
	}
	return stripClientPrefix(t.From)
}

func stripClientPrefix(s string) string {
	return strings.TrimPrefix(s, "client:")
}

package telephony

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Loopback is an in-process Signaling implementation. Tests drive call
// lifecycles by hand; the demo process runs it with auto-advance so an
// outgoing call rings and connects on its own.
//
// It intentionally models provider quirks the orchestrator must survive:
// outgoing calls have no sid until the first lifecycle event, and inbound
// calls reuse the provider call id as their sid.
type Loopback struct {
	mu sync.Mutex

	nextSid     int
	autoAdvance time.Duration

	current *LoopbackCall

	// Failure injection for tests.
	ConnectErr  error
	AcceptErr   error
	RejectErr   error
	RegisterErr error

	rejected   []string
	registered map[string]string
}

func NewLoopback() *Loopback {
	return &Loopback{registered: make(map[string]string)}
}

// NewAutoLoopback returns a Loopback that advances outgoing calls to ringing
// and then connected, each after latency.
func NewAutoLoopback(latency time.Duration) *Loopback {
	lb := NewLoopback()
	lb.autoAdvance = latency
	return lb
}

func (lb *Loopback) Name() string { return "loopback" }

func (lb *Loopback) Connect(ctx context.Context, credential string, params map[string]string, events CallEvents) (Call, error) {
	lb.mu.Lock()
	if lb.ConnectErr != nil {
		err := lb.ConnectErr
		lb.mu.Unlock()
		return nil, err
	}
	lb.nextSid++
	c := &LoopbackCall{
		lb:          lb,
		assignedSid: fmt.Sprintf("CA%08d", lb.nextSid),
		events:      events,
	}
	lb.current = c
	auto := lb.autoAdvance
	lb.mu.Unlock()

	if auto > 0 {
		go func() {
			time.Sleep(auto)
			c.Ring()
			time.Sleep(auto)
			c.Establish()
		}()
	}
	return c, nil
}

func (lb *Loopback) Accept(ctx context.Context, inv Invite, credential string, events CallEvents) (Call, error) {
	lb.mu.Lock()
	if lb.AcceptErr != nil {
		err := lb.AcceptErr
		lb.mu.Unlock()
		return nil, err
	}
	// Inbound calls already carry the provider sid.
	c := &LoopbackCall{
		lb:          lb,
		assignedSid: inv.ProviderCallID,
		sid:         inv.ProviderCallID,
		events:      events,
	}
	lb.current = c
	auto := lb.autoAdvance
	lb.mu.Unlock()

	if auto > 0 {
		go func() {
			time.Sleep(auto)
			c.Establish()
		}()
	}
	return c, nil
}

func (lb *Loopback) Reject(ctx context.Context, inv Invite) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.RejectErr != nil {
		return lb.RejectErr
	}
	lb.rejected = append(lb.rejected, inv.ProviderCallID)
	return nil
}

func (lb *Loopback) Register(ctx context.Context, credential, pushToken string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.RegisterErr != nil {
		return lb.RegisterErr
	}
	lb.registered[credential] = pushToken
	return nil
}

func (lb *Loopback) Unregister(ctx context.Context, credential, pushToken string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	delete(lb.registered, credential)
	return nil
}

// Rejected returns the provider call ids rejected so far.
func (lb *Loopback) Rejected() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	out := make([]string, len(lb.rejected))
	copy(out, lb.rejected)
	return out
}

// Registered reports whether a push token is bound to the credential.
func (lb *Loopback) Registered(credential string) (string, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	t, ok := lb.registered[credential]
	return t, ok
}

// Current returns the most recently created call handle, if any.
func (lb *Loopback) Current() *LoopbackCall {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.current
}

// LoopbackCall is the Loopback call handle. Test helpers (Ring, Establish,
// Drop, ...) emit the corresponding lifecycle events.
type LoopbackCall struct {
	lb     *Loopback
	events CallEvents

	mu          sync.Mutex
	assignedSid string
	sid         string // empty until the provider assigns it
	muted       bool
	onHold      bool
	ended       bool
}

func (c *LoopbackCall) Sid() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

func (c *LoopbackCall) Mute(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrUnavailable
	}
	c.muted = muted
	return nil
}

func (c *LoopbackCall) Hold(onHold bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrUnavailable
	}
	c.onHold = onHold
	return nil
}

func (c *LoopbackCall) Disconnect() error {
	c.Drop(nil)
	return nil
}

func (c *LoopbackCall) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Ring assigns the provider sid and emits the ringing event.
func (c *LoopbackCall) Ring() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.sid = c.assignedSid
	sid := c.sid
	c.mu.Unlock()
	c.events.OnRinging(sid)
}

// Establish assigns the sid if needed and emits the connected event.
func (c *LoopbackCall) Establish() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.sid = c.assignedSid
	sid := c.sid
	c.mu.Unlock()
	c.events.OnConnected(sid)
}

// Drop terminates the call and emits the disconnected event. cause may be nil
// for a clean hangup.
func (c *LoopbackCall) Drop(cause error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.sid = c.assignedSid
	sid := c.sid
	c.mu.Unlock()
	c.events.OnDisconnected(sid, cause)
}

// Degrade emits a reconnecting event followed, if recover is true, by a
// reconnected event.
func (c *LoopbackCall) Degrade(cause error, recover bool) {
	c.mu.Lock()
	sid := c.sid
	ended := c.ended
	c.mu.Unlock()
	if ended {
		return
	}
	c.events.OnReconnecting(sid, cause)
	if recover {
		c.events.OnReconnected(sid)
	}
}

// EmitQuality emits a quality-warnings change.
func (c *LoopbackCall) EmitQuality(current []string) {
	c.mu.Lock()
	sid := c.sid
	ended := c.ended
	c.mu.Unlock()
	if ended {
		return
	}
	c.events.OnQualityWarnings(sid, current)
}

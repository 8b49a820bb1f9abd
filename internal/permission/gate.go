// Package permission implements the microphone-capability acquisition state
// machine. At most one privileged action waits on the capability at a time;
// a newer request supersedes the older one with an explicit error, never
// silently.
package permission

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"voicebridge/internal/device"
)

var (
	// ErrSuperseded reports that a newer privileged request replaced this one.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrDenied is the terminal denial delivered to the waiting continuation.
	ErrDenied = errors.New("microphone permission denied")

	// ErrNoPendingAction reports a retry/settings transition with nothing
	// outstanding.
	ErrNoPendingAction = errors.New("no pending permission action")
)

// State is the gate's position in the acquisition flow for the outstanding
// action.
type State int

const (
	// StateIdle: no action is waiting on the capability.
	StateIdle State = iota
	// StateRequested: the OS prompt has been issued; awaiting its result.
	StateRequested
	// StateRationaleShown: prompt denied but the OS allows asking again; the
	// caller surfaces a retry-or-cancel choice.
	StateRationaleShown
	// StateAwaitingSettings: prompt denied terminally; the caller surfaces an
	// open-settings-or-cancel choice, and once redirected the flow resolves
	// on the next foreground regain.
	StateAwaitingSettings
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateRationaleShown:
		return "rationale_shown"
	case StateAwaitingSettings:
		return "awaiting_settings"
	}
	return "unknown"
}

// ActionKind tags the privileged operation waiting on the capability.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionOutgoingCall
	ActionAcceptCall
	ActionQuery
)

func (k ActionKind) String() string {
	switch k {
	case ActionOutgoingCall:
		return "outgoing_call"
	case ActionAcceptCall:
		return "accept_call"
	case ActionQuery:
		return "query"
	}
	return "none"
}

// Action describes the operation to resume once the capability resolves.
type Action struct {
	Kind        ActionKind
	Destination string // outgoing call target
	InviteID    string // invite being accepted
}

// Gate serializes capability acquisition. The continuation passed to Ensure
// fires exactly once: nil on grant, ErrDenied/ErrSuperseded/a cancel reason
// otherwise. Continuations run without the gate lock held, so they may
// re-enter the gate or call into other aggregates freely.
type Gate struct {
	perms device.Permissions
	log   *slog.Logger

	mu               sync.Mutex
	state            State
	action           Action
	done             func(error)
	attempts         int
	requestedAt      time.Time
	awaitingSettings bool

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewGate(perms device.Permissions, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{perms: perms, log: log, clock: time.Now}
}

// Ensure resolves the action against the capability. If the capability is
// already held the continuation runs synchronously and no pending state is
// installed. Otherwise any outstanding action is failed with ErrSuperseded,
// the new action becomes the single pending one, and the OS prompt is issued.
func (g *Gate) Ensure(action Action, done func(error)) {
	if g.perms.Granted() {
		done(nil)
		return
	}

	g.mu.Lock()
	old := g.done
	g.state = StateRequested
	g.action = action
	g.done = done
	g.attempts = 1
	g.awaitingSettings = false
	g.requestedAt = g.clock()
	g.mu.Unlock()

	if old != nil {
		g.log.Info("pending permission action superseded", "next", action.Kind.String())
		old(ErrSuperseded)
	}

	g.log.Debug("requesting microphone permission", "action", action.Kind.String(), "attempt", 1)
	g.perms.Request()
}

// OnPromptResult consumes the OS prompt outcome. On denial the next state
// depends on whether the OS still allows prompting and how many attempts were
// already spent.
func (g *Gate) OnPromptResult(granted bool) {
	if granted {
		g.resolve(nil)
		return
	}

	canAskAgain := g.perms.CanAskAgain()

	g.mu.Lock()
	if g.done == nil {
		g.mu.Unlock()
		g.log.Debug("prompt result with no pending action")
		return
	}
	if canAskAgain && g.attempts <= 1 {
		g.state = StateRationaleShown
	} else {
		g.state = StateAwaitingSettings
		g.awaitingSettings = false
	}
	state := g.state
	g.mu.Unlock()

	g.log.Debug("microphone permission denied", "next_state", state.String(), "can_ask_again", canAskAgain)
}

// Retry re-issues the prompt after the rationale was shown.
func (g *Gate) Retry() error {
	g.mu.Lock()
	if g.done == nil || g.state != StateRationaleShown {
		g.mu.Unlock()
		return ErrNoPendingAction
	}
	g.attempts++
	g.state = StateRequested
	g.requestedAt = g.clock()
	attempt := g.attempts
	g.mu.Unlock()

	g.log.Debug("retrying microphone permission", "attempt", attempt)
	g.perms.Request()
	return nil
}

// OpenSettingsAndAwaitReturn redirects the user to the OS settings surface.
// The flow resolves on the next OnForegroundRegained, not before. The lock
// screen is dismissed first when the device is locked.
func (g *Gate) OpenSettingsAndAwaitReturn() error {
	g.mu.Lock()
	if g.done == nil || (g.state != StateRationaleShown && g.state != StateAwaitingSettings) {
		g.mu.Unlock()
		return ErrNoPendingAction
	}
	g.state = StateAwaitingSettings
	g.awaitingSettings = true
	g.mu.Unlock()

	if g.perms.DeviceLocked() {
		g.perms.DismissKeyguard(g.perms.OpenSettings)
		return nil
	}
	g.perms.OpenSettings()
	return nil
}

// OnForegroundRegained checks the capability after the app returns to the
// foreground. A settings round trip that did not produce the capability
// resolves as a terminal denial; there is no automatic re-prompt loop.
func (g *Gate) OnForegroundRegained() {
	granted := g.perms.Granted()

	g.mu.Lock()
	if g.done == nil {
		g.mu.Unlock()
		return
	}
	if !granted && !g.awaitingSettings {
		// Denied mid-flow without a settings redirect: the dialog choice is
		// still pending, nothing to resolve yet.
		g.mu.Unlock()
		return
	}
	done := g.takeLocked()
	g.mu.Unlock()

	if granted {
		done(nil)
		return
	}
	g.log.Info("settings return without permission, resolving denial")
	done(ErrDenied)
}

// Cancel fails the outstanding action with reason (ErrDenied when nil).
func (g *Gate) Cancel(reason error) {
	if reason == nil {
		reason = ErrDenied
	}
	g.resolve(reason)
}

// State returns the gate's current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the outstanding action, if any.
func (g *Gate) Pending() (Action, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.action, g.done != nil
}

// Attempts returns the prompt attempt count for the outstanding action.
func (g *Gate) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

func (g *Gate) resolve(err error) {
	g.mu.Lock()
	if g.done == nil {
		g.mu.Unlock()
		return
	}
	done := g.takeLocked()
	g.mu.Unlock()
	done(err)
}

// takeLocked clears all pending state and returns the continuation.
// Caller must hold g.mu and must invoke the result after releasing it.
func (g *Gate) takeLocked() func(error) {
	done := g.done
	g.done = nil
	g.action = Action{}
	g.state = StateIdle
	g.attempts = 0
	g.awaitingSettings = false
	return done
}

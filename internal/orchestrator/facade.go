// Package orchestrator coordinates the voice aggregates: credentials,
// pending invites, the permission gate, and the single call session. It is
// the only package that calls across aggregate boundaries, and it never does
// so while holding more than one aggregate's lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"voicebridge/internal/device"
	"voicebridge/internal/invite"
	"voicebridge/internal/permission"
	"voicebridge/internal/session"
	"voicebridge/internal/telephony"
	"voicebridge/internal/token"
)

var ErrNotLoggedIn = errors.New("not logged in")

// CancelReason distinguishes who withdrew a pending invite.
type CancelReason string

const (
	CancelUserDeclined    CancelReason = "user_declined"
	CancelRemoteCancelled CancelReason = "remote_cancelled"
)

// Listener receives orchestration events. Callbacks are serialized; for a
// given call id they arrive in causal order. Implementations must not block.
type Listener interface {
	OnRegistrationSuccess(identity string)
	OnRegistrationFailure(err error)
	OnInviteReceived(inv invite.Invite)
	OnInviteCancelled(inv invite.Invite, reason CancelReason)
	OnCallRinging(sid string)
	OnCallConnected(sid string)
	OnCallReconnecting(sid string, cause error)
	OnCallReconnected(sid string)
	OnCallDisconnected(sid string, cause error)
	OnCallQualityWarnings(sid string, warnings []string)
}

// Status is the composite snapshot surfaced to clients after a relaunch or
// status poll.
type Status struct {
	LoggedIn       bool            `json:"logged_in"`
	Identity       string          `json:"identity,omitempty"`
	Session        session.Status  `json:"session"`
	PendingInvites []invite.Invite `json:"pending_invites"`
	Permission     string          `json:"permission_state"`
	MicGranted     bool            `json:"mic_granted"`
}

// Facade is the orchestration entry point. All public methods are safe for
// concurrent use.
type Facade struct {
	tokens    *token.Store
	invites   *invite.Registry
	gate      *permission.Gate
	session   *session.Service
	signaling telephony.Signaling
	perms     device.Permissions
	notifier  device.Notifier
	log       *slog.Logger

	emitMu    sync.Mutex
	listeners []Listener
}

func NewFacade(
	tokens *token.Store,
	invites *invite.Registry,
	gate *permission.Gate,
	sess *session.Service,
	signaling telephony.Signaling,
	perms device.Permissions,
	notifier device.Notifier,
	log *slog.Logger,
) *Facade {
	if log == nil {
		log = slog.Default()
	}
	f := &Facade{
		tokens:    tokens,
		invites:   invites,
		gate:      gate,
		session:   sess,
		signaling: signaling,
		perms:     perms,
		notifier:  notifier,
		log:       log,
	}
	sess.SetListener(f)
	return f
}

// AddListener registers an event consumer. Listeners added after events have
// fired do not see history; use Status and ReplayInvite to catch up.
func (f *Facade) AddListener(l Listener) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *Facade) emit(fn func(Listener)) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	for _, l := range f.listeners {
		fn(l)
	}
}

// Restore loads any persisted credential and push token. Stale credentials
// are discarded silently; a restored session starts logged out in that case.
func (f *Facade) Restore(ctx context.Context) error {
	return f.tokens.Restore(ctx)
}

// Login validates and stores the access credential, then registers for
// incoming-call push delivery when a push token is known. Registration
// outcome is also published as an event so UI surfaces that did not call
// Login observe it.
func (f *Facade) Login(ctx context.Context, accessToken string) error {
	cred, err := f.tokens.SetCredential(ctx, accessToken)
	if err != nil {
		return err
	}

	if push := f.tokens.PushToken(); push != "" {
		if err := f.signaling.Register(ctx, cred.Value, push); err != nil {
			f.log.Error("push registration failed", "identity", cred.Identity, "err", err)
			f.emit(func(l Listener) { l.OnRegistrationFailure(err) })
			return fmt.Errorf("register: %w", err)
		}
	}

	f.log.Info("logged in", "identity", cred.Identity)
	f.emit(func(l Listener) { l.OnRegistrationSuccess(cred.Identity) })
	return nil
}

// Logout tears the whole voice surface down: the active call, every pending
// invite, the outstanding permission action, push registration, and the
// stored credential. Best-effort steps log failures instead of aborting.
func (f *Facade) Logout(ctx context.Context) error {
	cred, hadCred := f.tokens.Credential()

	f.session.Stop()
	// A standalone capability query needs no login; only call-attached
	// actions die with the session.
	if act, pending := f.gate.Pending(); pending && act.Kind != permission.ActionQuery {
		f.gate.Cancel(ErrNotLoggedIn)
	}

	for _, inv := range f.invites.All() {
		if err := f.signaling.Reject(ctx, telephony.Invite{ProviderCallID: inv.ProviderCallID}); err != nil {
			f.log.Warn("reject on logout failed", "invite_id", inv.ID, "err", err)
		}
		f.emit(func(l Listener) { l.OnInviteCancelled(inv, CancelUserDeclined) })
	}
	f.invites.Clear()
	f.notifier.DismissIncomingCall()
	f.notifier.StopRinging()

	if hadCred {
		if push := f.tokens.PushToken(); push != "" {
			if err := f.signaling.Unregister(ctx, cred.Value, push); err != nil {
				f.log.Warn("push unregistration failed", "err", err)
			}
		}
	}
	if err := f.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	f.log.Info("logged out")
	return nil
}

func (f *Facade) IsLoggedIn() bool { return f.tokens.IsValid() }

// SetPushToken stores the device push token and refreshes the registration
// when a session is already logged in.
func (f *Facade) SetPushToken(ctx context.Context, pushToken string) error {
	if err := f.tokens.SetPushToken(ctx, pushToken); err != nil {
		return err
	}
	cred, ok := f.tokens.Credential()
	if !ok || !f.tokens.IsValid() {
		return nil
	}
	if err := f.signaling.Register(ctx, cred.Value, pushToken); err != nil {
		f.emit(func(l Listener) { l.OnRegistrationFailure(err) })
		return fmt.Errorf("register: %w", err)
	}
	f.emit(func(l Listener) { l.OnRegistrationSuccess(cred.Identity) })
	return nil
}

// MakeCall places an outgoing call once the microphone capability resolves.
// done fires exactly once, possibly synchronously: with the call sid on
// success, or with ErrNotLoggedIn, permission.ErrDenied,
// permission.ErrSuperseded, or a session error otherwise.
func (f *Facade) MakeCall(ctx context.Context, destination string, done func(sid string, err error)) {
	if !f.IsLoggedIn() {
		done("", ErrNotLoggedIn)
		return
	}

	// The continuation can fire long after the originating request is gone,
	// so it must not inherit its cancellation.
	callCtx := context.WithoutCancel(ctx)
	f.gate.Ensure(permission.Action{Kind: permission.ActionOutgoingCall, Destination: destination}, func(err error) {
		if err != nil {
			done("", err)
			return
		}
		// The credential may have expired or been cleared while the prompt
		// was up.
		cred, ok := f.tokens.Credential()
		if !ok || !f.tokens.IsValid() {
			done("", ErrNotLoggedIn)
			return
		}
		sid, err := f.session.StartOutgoing(callCtx, destination, cred.Value)
		done(sid, err)
	})
}

// AcceptCall answers a pending invite once the microphone capability
// resolves. A denial rejects the invite at the provider and surfaces a
// disconnected event so callers observe the same terminal state as a failed
// call. The invite may disappear while the prompt is up; done then receives
// invite.ErrNotFound.
func (f *Facade) AcceptCall(ctx context.Context, inviteID string, done func(sid string, err error)) {
	if !f.IsLoggedIn() {
		done("", ErrNotLoggedIn)
		return
	}
	if _, ok := f.invites.Get(inviteID); !ok {
		done("", invite.ErrNotFound)
		return
	}

	callCtx := context.WithoutCancel(ctx)
	f.gate.Ensure(permission.Action{Kind: permission.ActionAcceptCall, InviteID: inviteID}, func(permErr error) {
		if permErr != nil {
			if errors.Is(permErr, permission.ErrDenied) {
				f.rejectDeniedInvite(callCtx, inviteID)
			}
			done("", permErr)
			return
		}

		// The credential may have expired or been cleared while the prompt
		// was up; the invite must stay intact in that case.
		cred, valid := f.tokens.Credential()
		if !valid || !f.tokens.IsValid() {
			done("", ErrNotLoggedIn)
			return
		}

		inv, ok := f.invites.Get(inviteID)
		if !ok {
			done("", invite.ErrNotFound)
			return
		}
		f.invites.Remove(inviteID)
		f.notifier.DismissIncomingCall()
		f.notifier.StopRinging()

		sid, err := f.session.AcceptIncoming(callCtx, telephony.Invite{
			ProviderCallID: inv.ProviderCallID,
			From:           inv.From,
			To:             inv.To,
			CustomParams:   inv.CustomParams,
		}, cred.Value)
		done(sid, err)
	})
}

// rejectDeniedInvite handles a microphone denial racing an answered invite:
// the caller must not be left ringing, so the invite is rejected at the
// provider and the denial is reported as a disconnected call.
func (f *Facade) rejectDeniedInvite(ctx context.Context, inviteID string) {
	inv, ok := f.invites.Get(inviteID)
	if !ok {
		return
	}
	if err := f.signaling.Reject(ctx, telephony.Invite{ProviderCallID: inv.ProviderCallID}); err != nil {
		f.log.Warn("reject after mic denial failed", "invite_id", inviteID, "err", err)
	}
	f.invites.Remove(inviteID)
	f.notifier.DismissIncomingCall()
	f.notifier.StopRinging()
	f.emit(func(l Listener) { l.OnCallDisconnected(inv.ProviderCallID, permission.ErrDenied) })
}

// RejectCall declines a pending invite.
func (f *Facade) RejectCall(ctx context.Context, inviteID string) error {
	inv, ok := f.invites.Get(inviteID)
	if !ok {
		return invite.ErrNotFound
	}
	if err := f.signaling.Reject(ctx, telephony.Invite{ProviderCallID: inv.ProviderCallID}); err != nil {
		return fmt.Errorf("reject: %w", err)
	}
	f.invites.Remove(inviteID)
	f.notifier.DismissIncomingCall()
	f.notifier.StopRinging()
	f.emit(func(l Listener) { l.OnInviteCancelled(inv, CancelUserDeclined) })
	return nil
}

// EndCall hangs up the active call. A no-op when nothing is active.
func (f *Facade) EndCall() { f.session.End() }

func (f *Facade) SetMuted(muted bool) error     { return f.session.SetMuted(muted) }
func (f *Facade) SetHold(onHold bool) error     { return f.session.SetHold(onHold) }
func (f *Facade) SetSpeaker(enabled bool) error { return f.session.SetSpeaker(enabled) }

// Status returns the composite snapshot clients use to rebuild their view.
func (f *Facade) Status() Status {
	identity, _ := f.tokens.Identity()
	return Status{
		LoggedIn:       f.tokens.IsValid(),
		Identity:       identity,
		Session:        f.session.Status(),
		PendingInvites: f.invites.All(),
		Permission:     f.gate.State().String(),
		MicGranted:     f.perms.Granted(),
	}
}

// HandleInvite ingests a provider invite: registers it, surfaces the
// incoming-call notification, starts ringing, and publishes the event.
func (f *Facade) HandleInvite(ctx context.Context, t telephony.Invite) invite.Invite {
	inv := f.invites.Add(t)
	f.log.Info("invite received", "invite_id", inv.ID, "from", inv.From)
	f.notifier.ShowIncomingCall(inv.ID, inv.CallerName, inv.From)
	f.notifier.StartRinging()
	f.emit(func(l Listener) { l.OnInviteReceived(inv) })
	return inv
}

// HandleCancelledInvite ingests a provider-side cancellation. A cancel for an
// unknown provider call id is a logged no-op: the invite was already
// answered, rejected, or never seen.
func (f *Facade) HandleCancelledInvite(ctx context.Context, providerCallID string) {
	inv, ok := f.invites.MatchByProviderID(providerCallID)
	if !ok {
		f.log.Info("cancel for unknown invite", "provider_call_id", providerCallID)
		return
	}
	f.invites.Remove(inv.ID)
	if f.invites.Count() == 0 {
		f.notifier.DismissIncomingCall()
		f.notifier.StopRinging()
	}
	f.emit(func(l Listener) { l.OnInviteCancelled(inv, CancelRemoteCancelled) })
}

// ReplayInvite re-publishes a still-pending invite, for surfaces that attach
// after the invite arrived (notification tap relaunching the client).
func (f *Facade) ReplayInvite(inviteID string) error {
	inv, ok := f.invites.Get(inviteID)
	if !ok {
		return invite.ErrNotFound
	}
	f.emit(func(l Listener) { l.OnInviteReceived(inv) })
	return nil
}

// RequestMicPermission runs the acquisition flow with no call attached. done
// fires exactly once with nil on grant.
func (f *Facade) RequestMicPermission(done func(error)) {
	f.gate.Ensure(permission.Action{Kind: permission.ActionQuery}, done)
}

// OnPermissionPromptResult forwards the OS prompt outcome to the gate.
func (f *Facade) OnPermissionPromptResult(granted bool) { f.gate.OnPromptResult(granted) }

// RetryPermission re-issues the prompt after the rationale was shown.
func (f *Facade) RetryPermission() error { return f.gate.Retry() }

// OpenPermissionSettings redirects the user to system settings for the
// outstanding action.
func (f *Facade) OpenPermissionSettings() error { return f.gate.OpenSettingsAndAwaitReturn() }

// OnForegroundRegained resolves any settings round trip in flight.
func (f *Facade) OnForegroundRegained() { f.gate.OnForegroundRegained() }

// session.Listener — republish session lifecycle as orchestration events.

func (f *Facade) OnSessionRinging(sid string) {
	f.emit(func(l Listener) { l.OnCallRinging(sid) })
}

func (f *Facade) OnSessionConnected(sid string) {
	f.emit(func(l Listener) { l.OnCallConnected(sid) })
}

func (f *Facade) OnSessionReconnecting(sid string, cause error) {
	f.emit(func(l Listener) { l.OnCallReconnecting(sid, cause) })
}

func (f *Facade) OnSessionReconnected(sid string) {
	f.emit(func(l Listener) { l.OnCallReconnected(sid) })
}

func (f *Facade) OnSessionDisconnected(sid string, cause error) {
	f.emit(func(l Listener) { l.OnCallDisconnected(sid, cause) })
}

func (f *Facade) OnSessionQualityWarnings(sid string, warnings []string) {
	f.emit(func(l Listener) { l.OnCallQualityWarnings(sid, warnings) })
}

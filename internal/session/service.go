// Package session owns the single active call: its state machine, the
// signaling handle, and audio-route side effects. The service outlives any
// one UI surface; callers come and go while the call keeps running.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"voicebridge/internal/device"
	"voicebridge/internal/telephony"
)

var (
	ErrNoCredential  = errors.New("no valid credential")
	ErrAlreadyActive = errors.New("a call is already active")
	ErrConnectFailed = errors.New("connect failed")
	ErrAcceptFailed  = errors.New("accept failed")
	ErrNoActiveCall  = errors.New("no active call")
)

// PendingSid is the placeholder sid reported before the provider assigns one.
const PendingSid = "pending"

// State is a call session's position in its lifecycle. Disconnected is
// terminal and reachable from every non-terminal state.
type State string

const (
	StateConnecting   State = "connecting"
	StateRinging      State = "ringing"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Direction distinguishes who initiated the call.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Status is a point-in-time snapshot of the active session.
type Status struct {
	HasActive bool      `json:"has_active"`
	Sid       string    `json:"sid,omitempty"`
	State     State     `json:"state,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Muted     bool      `json:"muted"`
	OnHold    bool      `json:"on_hold"`
	Speaker   bool      `json:"speaker"`
}

// Listener receives session lifecycle events. Events for one call arrive in
// causal order. Connect and accept failures surface as a disconnected event
// carrying the cause; no separate failure event exists, so a listener must
// not assume connected was ever reached.
type Listener interface {
	OnSessionRinging(sid string)
	OnSessionConnected(sid string)
	OnSessionReconnecting(sid string, cause error)
	OnSessionReconnected(sid string)
	OnSessionDisconnected(sid string, cause error)
	OnSessionQualityWarnings(sid string, warnings []string)
}

type activeSession struct {
	sid       string
	direction Direction
	state     State
	muted     bool
	onHold    bool
	speaker   bool
	call      telephony.Call
}

// Service is the long-lived call actor. One mutex serializes all state; the
// signaling layer and the audio router are never invoked while it is held,
// and listener callbacks run outside it as well.
type Service struct {
	signaling telephony.Signaling
	audio     device.AudioRouter
	log       *slog.Logger

	mu     sync.Mutex
	active *activeSession

	// emitMu serializes listener delivery so event order is preserved even
	// when state transitions race.
	emitMu   sync.Mutex
	listener Listener
}

func NewService(signaling telephony.Signaling, audio device.AudioRouter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{signaling: signaling, audio: audio, log: log}
}

// SetListener registers the single lifecycle listener.
func (s *Service) SetListener(l Listener) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.listener = l
}

// StartOutgoing places an outgoing call. The returned sid is PendingSid until
// the provider assigns one through a lifecycle event.
func (s *Service) StartOutgoing(ctx context.Context, destination, credential string) (string, error) {
	if credential == "" {
		return "", ErrNoCredential
	}

	// Reserve the single session slot before touching the signaling layer.
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return "", ErrAlreadyActive
	}
	s.active = &activeSession{
		sid:       PendingSid,
		direction: DirectionOutgoing,
		state:     StateConnecting,
	}
	s.mu.Unlock()

	params := map[string]string{}
	if destination != "" {
		params["to"] = destination
	}

	call, err := s.signaling.Connect(ctx, credential, params, s.events())
	if err != nil {
		s.log.Error("outgoing connect failed", "to", destination, "err", err)
		s.failSetup(fmt.Errorf("%w: %w", ErrConnectFailed, err))
		return "", fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	s.mu.Lock()
	sid := PendingSid
	if s.active != nil {
		s.active.call = call
		if provider := call.Sid(); provider != "" {
			s.active.sid = provider
		}
		sid = s.active.sid
	}
	s.mu.Unlock()

	s.log.Info("outgoing call started", "to", destination, "sid", sid)
	return sid, nil
}

// AcceptIncoming answers an inbound invite.
func (s *Service) AcceptIncoming(ctx context.Context, inv telephony.Invite, credential string) (string, error) {
	if credential == "" {
		return "", ErrNoCredential
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return "", ErrAlreadyActive
	}
	s.active = &activeSession{
		sid:       PendingSid,
		direction: DirectionIncoming,
		state:     StateConnecting,
	}
	s.mu.Unlock()

	call, err := s.signaling.Accept(ctx, inv, credential, s.events())
	if err != nil {
		s.log.Error("accept failed", "from", inv.From, "err", err)
		s.failSetup(fmt.Errorf("%w: %w", ErrAcceptFailed, err))
		return "", fmt.Errorf("%w: %w", ErrAcceptFailed, err)
	}

	s.mu.Lock()
	sid := PendingSid
	if s.active != nil {
		s.active.call = call
		if provider := call.Sid(); provider != "" {
			s.active.sid = provider
		}
		sid = s.active.sid
	}
	s.mu.Unlock()

	s.log.Info("incoming call accepted", "from", inv.From, "sid", sid)
	return sid, nil
}

// End disconnects the active call. Idempotent no-op when nothing is active;
// cleanup happens when the disconnected event arrives.
func (s *Service) End() {
	s.mu.Lock()
	var call telephony.Call
	if s.active != nil {
		call = s.active.call
	}
	s.mu.Unlock()

	if call == nil {
		return
	}
	if err := call.Disconnect(); err != nil {
		s.log.Warn("disconnect failed", "err", err)
	}
}

// SetMuted toggles the microphone on the active call.
func (s *Service) SetMuted(muted bool) error {
	s.mu.Lock()
	if s.active == nil || s.active.call == nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	call := s.active.call
	s.mu.Unlock()

	if err := call.Mute(muted); err != nil {
		return fmt.Errorf("mute: %w", err)
	}

	s.mu.Lock()
	if s.active != nil {
		s.active.muted = muted
	}
	s.mu.Unlock()
	return nil
}

// SetHold places the active call on or off hold.
func (s *Service) SetHold(onHold bool) error {
	s.mu.Lock()
	if s.active == nil || s.active.call == nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	call := s.active.call
	s.mu.Unlock()

	if err := call.Hold(onHold); err != nil {
		return fmt.Errorf("hold: %w", err)
	}

	s.mu.Lock()
	if s.active != nil {
		s.active.onHold = onHold
	}
	s.mu.Unlock()
	return nil
}

// SetSpeaker routes audio to or away from the speakerphone.
func (s *Service) SetSpeaker(enabled bool) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoActiveCall
	}
	s.mu.Unlock()

	if err := s.audio.SetSpeaker(enabled); err != nil {
		return fmt.Errorf("set speaker: %w", err)
	}

	s.mu.Lock()
	if s.active != nil {
		s.active.speaker = enabled
	}
	s.mu.Unlock()
	return nil
}

// Status returns a snapshot of the active session.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Status{}
	}
	return Status{
		HasActive: true,
		Sid:       s.active.sid,
		State:     s.active.state,
		Direction: s.active.direction,
		Muted:     s.active.muted,
		OnHold:    s.active.onHold,
		Speaker:   s.active.speaker,
	}
}

// Stop tears the service down: ends any active call and resets audio. Used on
// logout; the actor itself is cheap and is simply dropped afterwards.
func (s *Service) Stop() {
	s.End()
	_ = s.audio.SetSpeaker(false)
}

// failSetup clears the reserved slot after a synchronous connect/accept
// failure and reports it as a disconnected event, so callers watching events
// see the same terminal state as for an async failure.
func (s *Service) failSetup(cause error) {
	s.mu.Lock()
	sid := PendingSid
	if s.active != nil {
		sid = s.active.sid
		s.active = nil
	}
	s.mu.Unlock()

	s.notify(func(l Listener) { l.OnSessionDisconnected(sid, cause) })
}

func (s *Service) notify(fn func(Listener)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.listener != nil {
		fn(s.listener)
	}
}

// events returns the CallEvents sink for the next call. A tiny adapter type
// keeps the exported Service API free of provider callback names.
func (s *Service) events() telephony.CallEvents {
	return callEvents{s}
}

type callEvents struct{ s *Service }

// adopt matches an event to the active session, adopting the provider sid on
// first contact. Events for stale sids are logged and dropped: the signaling
// layer is the source of truth for session existence, so a stray late event
// must not corrupt the current call.
func (s *Service) adopt(sid string) (string, bool) {
	if s.active == nil {
		return "", false
	}
	if s.active.sid == PendingSid && sid != "" {
		s.active.sid = sid
	}
	if sid != "" && s.active.sid != sid {
		return "", false
	}
	return s.active.sid, true
}

func (e callEvents) OnRinging(sid string) {
	s := e.s
	s.mu.Lock()
	current, ok := s.adopt(sid)
	if ok && s.active.state == StateConnecting {
		s.active.state = StateRinging
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("ringing event for unknown session", "sid", sid)
		return
	}
	s.notify(func(l Listener) { l.OnSessionRinging(current) })
}

func (e callEvents) OnConnected(sid string) {
	s := e.s
	s.mu.Lock()
	current, ok := s.adopt(sid)
	if ok {
		s.active.state = StateConnected
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("connected event for unknown session", "sid", sid)
		return
	}
	s.notify(func(l Listener) { l.OnSessionConnected(current) })
}

func (e callEvents) OnReconnecting(sid string, cause error) {
	s := e.s
	s.mu.Lock()
	current, ok := s.adopt(sid)
	if ok {
		s.active.state = StateReconnecting
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("reconnecting event for unknown session", "sid", sid)
		return
	}
	s.notify(func(l Listener) { l.OnSessionReconnecting(current, cause) })
}

func (e callEvents) OnReconnected(sid string) {
	s := e.s
	s.mu.Lock()
	current, ok := s.adopt(sid)
	if ok {
		s.active.state = StateConnected
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("reconnected event for unknown session", "sid", sid)
		return
	}
	s.notify(func(l Listener) { l.OnSessionReconnected(current) })
}

func (e callEvents) OnDisconnected(sid string, cause error) {
	s := e.s
	s.mu.Lock()
	current, ok := s.adopt(sid)
	if ok {
		s.active = nil
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("disconnected event for unknown session", "sid", sid)
		return
	}

	// Release exclusive audio resources with the call.
	_ = s.audio.SetSpeaker(false)

	s.log.Info("call disconnected", "sid", current, "err", cause)
	s.notify(func(l Listener) { l.OnSessionDisconnected(current, cause) })
}

func (e callEvents) OnQualityWarnings(sid string, current []string) {
	s := e.s
	s.mu.Lock()
	sessionSid, ok := s.adopt(sid)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.notify(func(l Listener) { l.OnSessionQualityWarnings(sessionSid, current) })
}

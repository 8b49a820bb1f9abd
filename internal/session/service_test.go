package session

import (
	"context"
	"errors"
	"testing"

	"voicebridge/internal/device"
	"voicebridge/internal/telephony"
	"voicebridge/pkg/logger"
)

type recordedEvent struct {
	kind  string
	sid   string
	cause error
}

type recordingListener struct {
	events []recordedEvent
}

func (r *recordingListener) OnSessionRinging(sid string) {
	r.events = append(r.events, recordedEvent{kind: "ringing", sid: sid})
}

func (r *recordingListener) OnSessionConnected(sid string) {
	r.events = append(r.events, recordedEvent{kind: "connected", sid: sid})
}

func (r *recordingListener) OnSessionReconnecting(sid string, cause error) {
	r.events = append(r.events, recordedEvent{kind: "reconnecting", sid: sid, cause: cause})
}

func (r *recordingListener) OnSessionReconnected(sid string) {
	r.events = append(r.events, recordedEvent{kind: "reconnected", sid: sid})
}

func (r *recordingListener) OnSessionDisconnected(sid string, cause error) {
	r.events = append(r.events, recordedEvent{kind: "disconnected", sid: sid, cause: cause})
}

func (r *recordingListener) OnSessionQualityWarnings(sid string, warnings []string) {
	r.events = append(r.events, recordedEvent{kind: "quality", sid: sid})
}

func (r *recordingListener) kinds() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *telephony.Loopback, *device.FakeAudioRouter, *recordingListener) {
	t.Helper()
	lb := telephony.NewLoopback()
	audio := device.NewFakeAudioRouter()
	svc := NewService(lb, audio, logger.New("test"))
	listener := &recordingListener{}
	svc.SetListener(listener)
	return svc, lb, audio, listener
}

func TestStartOutgoingLifecycle(t *testing.T) {
	svc, lb, _, listener := newTestService(t)

	sid, err := svc.StartOutgoing(context.Background(), "client:bob", "token")
	if err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	if sid != PendingSid {
		t.Fatalf("sid = %q, want %q before the provider assigns one", sid, PendingSid)
	}

	st := svc.Status()
	if !st.HasActive || st.State != StateConnecting || st.Direction != DirectionOutgoing {
		t.Fatalf("status after start = %+v", st)
	}

	call := lb.Current()
	call.Ring()
	st = svc.Status()
	if st.State != StateRinging {
		t.Fatalf("state after ring = %q, want %q", st.State, StateRinging)
	}
	if st.Sid == PendingSid || st.Sid == "" {
		t.Fatalf("sid not adopted from first event: %q", st.Sid)
	}

	call.Establish()
	if got := svc.Status().State; got != StateConnected {
		t.Fatalf("state after establish = %q, want %q", got, StateConnected)
	}

	want := []string{"ringing", "connected"}
	got := listener.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if listener.events[0].sid != st.Sid {
		t.Fatalf("event sid %q differs from status sid %q", listener.events[0].sid, st.Sid)
	}
}

func TestStartOutgoingRequiresCredential(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.StartOutgoing(context.Background(), "bob", ""); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestSecondCallRejectedWhileActive(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	if _, err := svc.StartOutgoing(context.Background(), "carol", "token"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second call err = %v, want ErrAlreadyActive", err)
	}
	if _, err := svc.AcceptIncoming(context.Background(), telephony.Invite{ProviderCallID: "CAin"}, "token"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("accept during call err = %v, want ErrAlreadyActive", err)
	}
}

func TestConnectFailureFreesSlotAndEmitsDisconnected(t *testing.T) {
	svc, lb, _, listener := newTestService(t)
	lb.ConnectErr = errors.New("registrar unreachable")

	_, err := svc.StartOutgoing(context.Background(), "bob", "token")
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("err = %v, want ErrConnectFailed", err)
	}

	if len(listener.events) != 1 || listener.events[0].kind != "disconnected" {
		t.Fatalf("events = %v, want a single disconnected", listener.kinds())
	}
	if !errors.Is(listener.events[0].cause, ErrConnectFailed) {
		t.Fatalf("disconnect cause = %v, want ErrConnectFailed", listener.events[0].cause)
	}
	if svc.Status().HasActive {
		t.Fatal("session still active after connect failure")
	}

	// The slot is free for the next attempt.
	lb.ConnectErr = nil
	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestAcceptIncomingAdoptsProviderSid(t *testing.T) {
	svc, lb, _, _ := newTestService(t)

	inv := telephony.Invite{ProviderCallID: "CAincoming01", From: "alice"}
	sid, err := svc.AcceptIncoming(context.Background(), inv, "token")
	if err != nil {
		t.Fatalf("AcceptIncoming: %v", err)
	}
	if sid != "CAincoming01" {
		t.Fatalf("sid = %q, want the provider call id", sid)
	}

	st := svc.Status()
	if st.Direction != DirectionIncoming || st.State != StateConnecting {
		t.Fatalf("status = %+v", st)
	}

	lb.Current().Establish()
	if got := svc.Status().State; got != StateConnected {
		t.Fatalf("state = %q, want %q", got, StateConnected)
	}
}

func TestAcceptFailureEmitsDisconnected(t *testing.T) {
	svc, lb, _, listener := newTestService(t)
	lb.AcceptErr = errors.New("invite expired")

	_, err := svc.AcceptIncoming(context.Background(), telephony.Invite{ProviderCallID: "CAx"}, "token")
	if !errors.Is(err, ErrAcceptFailed) {
		t.Fatalf("err = %v, want ErrAcceptFailed", err)
	}
	if len(listener.events) != 1 || listener.events[0].kind != "disconnected" {
		t.Fatalf("events = %v, want a single disconnected", listener.kinds())
	}
	if svc.Status().HasActive {
		t.Fatal("session still active after accept failure")
	}
}

func TestEndDisconnectsAndClears(t *testing.T) {
	svc, lb, _, listener := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	lb.Current().Establish()

	svc.End()
	if svc.Status().HasActive {
		t.Fatal("session still active after End")
	}
	got := listener.kinds()
	if got[len(got)-1] != "disconnected" {
		t.Fatalf("events = %v, want trailing disconnected", got)
	}

	// Ending again with nothing active is a silent no-op.
	svc.End()
	if len(listener.kinds()) != len(got) {
		t.Fatal("End on idle service emitted events")
	}
}

func TestMuteHoldSpeakerControls(t *testing.T) {
	svc, lb, audio, _ := newTestService(t)

	if err := svc.SetMuted(true); !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("mute with no call: %v, want ErrNoActiveCall", err)
	}

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	call := lb.Current()
	call.Establish()

	if err := svc.SetMuted(true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if !call.IsMuted() {
		t.Fatal("mute not applied to the signaling handle")
	}
	if err := svc.SetHold(true); err != nil {
		t.Fatalf("SetHold: %v", err)
	}
	if err := svc.SetSpeaker(true); err != nil {
		t.Fatalf("SetSpeaker: %v", err)
	}

	st := svc.Status()
	if !st.Muted || !st.OnHold || !st.Speaker {
		t.Fatalf("status = %+v, want muted, on hold, speaker", st)
	}
	if got := audio.Selected().Kind; got != device.RouteSpeaker {
		t.Fatalf("audio route = %q, want speaker", got)
	}
}

func TestSpeakerResetOnDisconnect(t *testing.T) {
	svc, lb, audio, _ := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	call := lb.Current()
	call.Establish()
	if err := svc.SetSpeaker(true); err != nil {
		t.Fatalf("SetSpeaker: %v", err)
	}

	call.Drop(nil)
	if got := audio.Selected().Kind; got == device.RouteSpeaker {
		t.Fatal("speaker route survived disconnect")
	}
}

func TestReconnectionAndQualityEvents(t *testing.T) {
	svc, lb, _, listener := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	call := lb.Current()
	call.Establish()

	netErr := errors.New("network lost")
	call.Degrade(netErr, true)
	call.EmitQuality([]string{"high-jitter"})

	want := []string{"connected", "reconnecting", "reconnected", "quality"}
	got := listener.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if !errors.Is(listener.events[1].cause, netErr) {
		t.Fatalf("reconnecting cause = %v, want %v", listener.events[1].cause, netErr)
	}
}

func TestStaleEventsAreDropped(t *testing.T) {
	svc, lb, _, listener := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	first := lb.Current()
	first.Establish()
	first.Drop(nil)

	// A second call is live; a late event from the first must not touch it.
	if _, err := svc.StartOutgoing(context.Background(), "carol", "token"); err != nil {
		t.Fatalf("second StartOutgoing: %v", err)
	}
	second := lb.Current()
	second.Ring()

	before := svc.Status()
	svc.events().OnConnected(first.Sid())
	after := svc.Status()
	if after.State != before.State || after.Sid != before.Sid {
		t.Fatalf("stale event mutated session: %+v -> %+v", before, after)
	}

	got := listener.kinds()
	if got[len(got)-1] != "ringing" {
		t.Fatalf("stale event reached the listener: %v", got)
	}
}

func TestStopEndsCallAndResetsAudio(t *testing.T) {
	svc, lb, audio, _ := newTestService(t)

	if _, err := svc.StartOutgoing(context.Background(), "bob", "token"); err != nil {
		t.Fatalf("StartOutgoing: %v", err)
	}
	lb.Current().Establish()
	if err := svc.SetSpeaker(true); err != nil {
		t.Fatalf("SetSpeaker: %v", err)
	}

	svc.Stop()
	if svc.Status().HasActive {
		t.Fatal("session survived Stop")
	}
	if got := audio.Selected().Kind; got == device.RouteSpeaker {
		t.Fatal("speaker route survived Stop")
	}
}

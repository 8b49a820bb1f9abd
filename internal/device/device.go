// Package device declares the OS-facing collaborator interfaces the
// orchestrator depends on: microphone permission, incoming-call UI, and audio
// routing. Real platforms supply implementations; fakes live in fake.go.
package device

// Permissions is the OS permission collaborator for the microphone capability.
//
// Request fires the OS prompt and returns immediately; the result is delivered
// back to the permission gate through its OnPromptResult entry point. The
// prompt's latency is user-controlled and unbounded.
type Permissions interface {
	Granted() bool
	Request()
	CanAskAgain() bool
	OpenSettings()
	DeviceLocked() bool

	// DismissKeyguard asks the OS to dismiss the lock screen and invokes then
	// only on success. Used as a pre-step before OpenSettings.
	DismissKeyguard(then func())
}

// Notifier renders and clears the incoming-call surface.
type Notifier interface {
	ShowIncomingCall(inviteID, callerName, from string)
	DismissIncomingCall()
	StartRinging()
	StopRinging()
}

// RouteKind classifies an audio output route.
type RouteKind string

const (
	RouteEarpiece  RouteKind = "earpiece"
	RouteSpeaker   RouteKind = "speaker"
	RouteBluetooth RouteKind = "bluetooth"
	RouteWired     RouteKind = "wired"
)

// Route is one selectable audio output.
type Route struct {
	Name string
	Kind RouteKind
}

// AudioRouter enumerates and selects audio routes. SetSpeaker is the
// speakerphone toggle: it picks the speaker route, or falls back to the first
// non-speaker route when disabled.
type AudioRouter interface {
	Routes() []Route
	Select(r Route) error
	SetSpeaker(enabled bool) error
}

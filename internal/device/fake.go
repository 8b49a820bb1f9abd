package device

import "sync"

// FakePermissions is a scriptable Permissions implementation for tests and
// the demo process.
type FakePermissions struct {
	mu sync.Mutex

	granted     bool
	canAskAgain bool
	locked      bool

	Requests       int
	SettingsOpened int
	KeyguardAsked  int
}

func NewFakePermissions(granted bool) *FakePermissions {
	return &FakePermissions{granted: granted, canAskAgain: true}
}

func (p *FakePermissions) Granted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

func (p *FakePermissions) Request() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests++
}

func (p *FakePermissions) CanAskAgain() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canAskAgain
}

func (p *FakePermissions) OpenSettings() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SettingsOpened++
}

func (p *FakePermissions) DeviceLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

func (p *FakePermissions) DismissKeyguard(then func()) {
	p.mu.Lock()
	p.KeyguardAsked++
	p.locked = false
	p.mu.Unlock()
	if then != nil {
		then()
	}
}

// SetGranted flips the capability, as if the user changed it in settings.
func (p *FakePermissions) SetGranted(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

// SetCanAskAgain controls the OS "can ask again" signal.
func (p *FakePermissions) SetCanAskAgain(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canAskAgain = v
}

// SetLocked simulates the lock screen being up.
func (p *FakePermissions) SetLocked(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = v
}

// FakeNotifier records notification and ringtone activity.
type FakeNotifier struct {
	mu sync.Mutex

	Shown     []string // invite ids shown
	Dismissed int
	Ringing   bool
}

func NewFakeNotifier() *FakeNotifier { return &FakeNotifier{} }

func (n *FakeNotifier) ShowIncomingCall(inviteID, callerName, from string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Shown = append(n.Shown, inviteID)
}

func (n *FakeNotifier) DismissIncomingCall() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Dismissed++
}

func (n *FakeNotifier) StartRinging() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Ringing = true
}

func (n *FakeNotifier) StopRinging() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Ringing = false
}

// IsRinging reports whether the ringtone is currently playing.
func (n *FakeNotifier) IsRinging() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Ringing
}

// ShownCount returns how many incoming-call surfaces were shown.
func (n *FakeNotifier) ShownCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Shown)
}

// DismissedCount returns how many times the surface was dismissed.
func (n *FakeNotifier) DismissedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Dismissed
}

// FakeAudioRouter is an in-memory AudioRouter with a standard phone route set.
type FakeAudioRouter struct {
	mu sync.Mutex

	routes   []Route
	selected Route
}

func NewFakeAudioRouter() *FakeAudioRouter {
	return &FakeAudioRouter{
		routes: []Route{
			{Name: "Earpiece", Kind: RouteEarpiece},
			{Name: "Speakerphone", Kind: RouteSpeaker},
		},
		selected: Route{Name: "Earpiece", Kind: RouteEarpiece},
	}
}

func (a *FakeAudioRouter) Routes() []Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Route, len(a.routes))
	copy(out, a.routes)
	return out
}

func (a *FakeAudioRouter) Select(r Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selected = r
	return nil
}

func (a *FakeAudioRouter) SetSpeaker(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	want := RouteEarpiece
	if enabled {
		want = RouteSpeaker
	}
	for _, r := range a.routes {
		if r.Kind == want {
			a.selected = r
			return nil
		}
	}
	// Keep current route when no match exists (e.g. bluetooth-only headset).
	return nil
}

// Selected returns the currently selected route.
func (a *FakeAudioRouter) Selected() Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

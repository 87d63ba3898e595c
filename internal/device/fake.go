package device

import "sync"

// FakeDriver is an in-memory Driver used by tests and as the degraded-mode
// stand-in when no OS driver exists. It counts created and released gamepads
// so leak checks are a simple subtraction.
type FakeDriver struct {
	mu         sync.Mutex
	unavail    bool
	failCreate bool
	created    int
	released   int
	pads       []*FakeGamepad
	keyboard   FakeKeyboard
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// SetUnavailable makes the whole driver report unavailable.
func (d *FakeDriver) SetUnavailable(v bool) {
	d.mu.Lock()
	d.unavail = v
	d.mu.Unlock()
}

// FailCreation makes subsequent CreateGamepad calls fail while the driver
// itself still reports available.
func (d *FakeDriver) FailCreation(v bool) {
	d.mu.Lock()
	d.failCreate = v
	d.mu.Unlock()
}

func (d *FakeDriver) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.unavail
}

func (d *FakeDriver) CreateGamepad() (Gamepad, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unavail || d.failCreate {
		return nil, ErrDriverUnavailable
	}
	d.created++
	pad := &FakeGamepad{driver: d}
	d.pads = append(d.pads, pad)
	return pad, nil
}

// Pads returns every gamepad ever created, in creation order.
func (d *FakeDriver) Pads() []*FakeGamepad {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeGamepad, len(d.pads))
	copy(out, d.pads)
	return out
}

func (d *FakeDriver) Keyboard() Keyboard {
	return &d.keyboard
}

// Created returns how many gamepads have been created.
func (d *FakeDriver) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

// Outstanding returns created minus released gamepads.
func (d *FakeDriver) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created - d.released
}

// FakeGamepad records the last state set per control.
type FakeGamepad struct {
	mu      sync.Mutex
	driver  *FakeDriver
	Buttons map[Button]bool
	Axes    map[Axis]int16
	Sliders map[Slider]uint8
	Closed  bool
}

func (g *FakeGamepad) SetButton(b Button, pressed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Buttons == nil {
		g.Buttons = make(map[Button]bool)
	}
	g.Buttons[b] = pressed
	return nil
}

func (g *FakeGamepad) SetAxis(a Axis, value int16) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Axes == nil {
		g.Axes = make(map[Axis]int16)
	}
	g.Axes[a] = value
	return nil
}

func (g *FakeGamepad) SetSlider(s Slider, value uint8) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Sliders == nil {
		g.Sliders = make(map[Slider]uint8)
	}
	g.Sliders[s] = value
	return nil
}

func (g *FakeGamepad) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Closed {
		return nil
	}
	g.Closed = true
	g.driver.mu.Lock()
	g.driver.released++
	g.driver.mu.Unlock()
	return nil
}

// Axis returns the last value set for a.
func (g *FakeGamepad) Axis(a Axis) int16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Axes[a]
}

// Button returns the last state set for b.
func (g *FakeGamepad) Button(b Button) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Buttons[b]
}

// Slider returns the last value set for s.
func (g *FakeGamepad) Slider(s Slider) uint8 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Sliders[s]
}

// FakeKeyboard records every typed string.
type FakeKeyboard struct {
	mu    sync.Mutex
	Typed []string
}

func (k *FakeKeyboard) TypeText(text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Typed = append(k.Typed, text)
	return nil
}

// TypedText returns a snapshot of everything typed so far.
func (k *FakeKeyboard) TypedText() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.Typed))
	copy(out, k.Typed)
	return out
}

// Package device defines the virtual gamepad/keyboard contract the session
// core binds verified clients to, plus the concrete adapters.
package device

import "errors"

// ErrDriverUnavailable means the OS virtual-input facility is missing or
// failed. The host keeps running degraded; no session can become verified.
var ErrDriverUnavailable = errors.New("virtual input driver unavailable")

type Button uint8

const (
	ButtonA Button = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLeftShoulder
	ButtonRightShoulder
	ButtonDpadUp
	ButtonDpadDown
	ButtonDpadLeft
	ButtonDpadRight
	ButtonStart
	ButtonBack
)

type Axis uint8

const (
	AxisLeftX Axis = iota
	AxisLeftY
	AxisRightX
	AxisRightY
)

type Slider uint8

const (
	SliderLeftTrigger Slider = iota
	SliderRightTrigger
)

// Gamepad is one emulated controller. Creation and Close are paired 1:1 per
// session; Close releases the OS handle and must be called exactly once.
type Gamepad interface {
	SetButton(b Button, pressed bool) error
	SetAxis(a Axis, value int16) error
	SetSlider(s Slider, value uint8) error
	Close() error
}

// Keyboard types free-form text. A single keyboard is shared by all sessions.
type Keyboard interface {
	TypeText(text string) error
}

// Driver is the OS-level factory for virtual devices.
type Driver interface {
	// Available reports whether devices can be created at all. False means
	// the host runs in degraded mode.
	Available() bool
	CreateGamepad() (Gamepad, error)
	Keyboard() Keyboard
}

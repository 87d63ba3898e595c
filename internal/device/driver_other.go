//go:build !linux

package device

// NewDriver returns a driver that reports unavailable on platforms without a
// uinput adapter. The host still starts; sessions can never become verified.
func NewDriver() Driver {
	d := NewFakeDriver()
	d.SetUnavailable(true)
	return d
}

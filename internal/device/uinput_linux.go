//go:build linux

package device

// uinput adapter: presents an Xbox-style virtual gamepad and a virtual
// keyboard through /dev/uinput. ioctl request encoding follows the Linux
// _IOC macro.

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const uinputPath = "/dev/uinput"

// Event types and codes.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00

	btnA      = 0x130
	btnB      = 0x131
	btnX      = 0x133
	btnY      = 0x134
	btnTL     = 0x136
	btnTR     = 0x137
	btnSelect = 0x13a
	btnStart  = 0x13b

	btnDpadUp    = 0x220
	btnDpadDown  = 0x221
	btnDpadLeft  = 0x222
	btnDpadRight = 0x223

	absX  = 0x00
	absY  = 0x01
	absZ  = 0x02
	absRX = 0x03
	absRY = 0x04
	absRZ = 0x05
)

const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (uint32('U') << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type uinputAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type uinputAbsSetup struct {
	Code uint16
	_    uint16
	Info uinputAbsInfo
}

func uiDevCreate() uintptr  { return ioc(iocNone, 1, 0) }
func uiDevDestroy() uintptr { return ioc(iocNone, 2, 0) }
func uiDevSetup() uintptr   { return ioc(iocWrite, 3, uint32(unsafe.Sizeof(uinputSetup{}))) }
func uiAbsSetup() uintptr   { return ioc(iocWrite, 4, uint32(unsafe.Sizeof(uinputAbsSetup{}))) }
func uiSetEvBit() uintptr   { return ioc(iocWrite, 100, 4) }
func uiSetKeyBit() uintptr  { return ioc(iocWrite, 101, 4) }
func uiSetAbsBit() uintptr  { return ioc(iocWrite, 103, 4) }

func ioctlInt(fd int, req uintptr, value int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(value))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlPtr(fd int, req uintptr, p unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(p))
	if errno != 0 {
		return errno
	}
	return nil
}

var buttonCodes = map[Button]uint16{
	ButtonA:             btnA,
	ButtonB:             btnB,
	ButtonX:             btnX,
	ButtonY:             btnY,
	ButtonLeftShoulder:  btnTL,
	ButtonRightShoulder: btnTR,
	ButtonDpadUp:        btnDpadUp,
	ButtonDpadDown:      btnDpadDown,
	ButtonDpadLeft:      btnDpadLeft,
	ButtonDpadRight:     btnDpadRight,
	ButtonStart:         btnStart,
	ButtonBack:          btnSelect,
}

var axisCodes = map[Axis]uint16{
	AxisLeftX:  absX,
	AxisLeftY:  absY,
	AxisRightX: absRX,
	AxisRightY: absRY,
}

var sliderCodes = map[Slider]uint16{
	SliderLeftTrigger:  absZ,
	SliderRightTrigger: absRZ,
}

// uinputDriver creates devices through /dev/uinput. The keyboard is shared
// and created lazily on first use.
type uinputDriver struct {
	kbOnce sync.Once
	kb     *uinputNode
	kbErr  error
}

// NewDriver returns the platform driver.
func NewDriver() Driver {
	return &uinputDriver{}
}

func (d *uinputDriver) Available() bool {
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}

func (d *uinputDriver) CreateGamepad() (Gamepad, error) {
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDriverUnavailable, uinputPath, err)
	}

	node := &uinputNode{fd: fd}
	if err := node.setupGamepad(); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
	}
	return &uinputGamepad{node: node}, nil
}

func (d *uinputDriver) Keyboard() Keyboard {
	d.kbOnce.Do(func() {
		fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			d.kbErr = fmt.Errorf("%w: open %s: %v", ErrDriverUnavailable, uinputPath, err)
			return
		}
		node := &uinputNode{fd: fd}
		if err := node.setupKeyboard(); err != nil {
			unix.Close(fd)
			d.kbErr = fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
			return
		}
		d.kb = node
	})
	if d.kbErr != nil {
		return unavailableKeyboard{err: d.kbErr}
	}
	return &uinputKeyboard{node: d.kb}
}

// uinputNode is one created /dev/uinput device.
type uinputNode struct {
	mu        sync.Mutex
	fd        int
	destroyed bool
}

func (n *uinputNode) setupGamepad() error {
	if err := ioctlInt(n.fd, uiSetEvBit(), evKey); err != nil {
		return fmt.Errorf("set EV_KEY: %w", err)
	}
	for _, code := range buttonCodes {
		if err := ioctlInt(n.fd, uiSetKeyBit(), int(code)); err != nil {
			return fmt.Errorf("set key bit 0x%x: %w", code, err)
		}
	}
	if err := ioctlInt(n.fd, uiSetEvBit(), evAbs); err != nil {
		return fmt.Errorf("set EV_ABS: %w", err)
	}
	for _, code := range axisCodes {
		if err := n.absSetup(code, -axisMax, axisMax); err != nil {
			return err
		}
	}
	for _, code := range sliderCodes {
		if err := n.absSetup(code, 0, 255); err != nil {
			return err
		}
	}
	return n.create("MobControl Virtual Gamepad", 0x045e, 0x028e)
}

func (n *uinputNode) setupKeyboard() error {
	if err := ioctlInt(n.fd, uiSetEvBit(), evKey); err != nil {
		return fmt.Errorf("set EV_KEY: %w", err)
	}
	for _, code := range keyboardKeyCodes() {
		if err := ioctlInt(n.fd, uiSetKeyBit(), int(code)); err != nil {
			return fmt.Errorf("set key bit 0x%x: %w", code, err)
		}
	}
	return n.create("MobControl Virtual Keyboard", 0x045e, 0x0001)
}

func (n *uinputNode) absSetup(code uint16, min, max int32) error {
	setup := uinputAbsSetup{
		Code: code,
		Info: uinputAbsInfo{Minimum: min, Maximum: max},
	}
	if err := ioctlInt(n.fd, uiSetAbsBit(), int(code)); err != nil {
		return fmt.Errorf("set abs bit 0x%x: %w", code, err)
	}
	if err := ioctlPtr(n.fd, uiAbsSetup(), unsafe.Pointer(&setup)); err != nil {
		return fmt.Errorf("abs setup 0x%x: %w", code, err)
	}
	return nil
}

func (n *uinputNode) create(name string, vendor, product uint16) error {
	setup := uinputSetup{
		ID: inputID{Bustype: 0x03, Vendor: vendor, Product: product, Version: 1},
	}
	copy(setup.Name[:], name)
	if err := ioctlPtr(n.fd, uiDevSetup(), unsafe.Pointer(&setup)); err != nil {
		return fmt.Errorf("dev setup: %w", err)
	}
	if err := ioctlInt(n.fd, uiDevCreate(), 0); err != nil {
		return fmt.Errorf("dev create: %w", err)
	}
	return nil
}

// emit writes one input_event. Timestamps are left zero; the kernel fills
// them in. 64-bit input_event layout: 16 bytes timeval, then type/code/value.
func (n *uinputNode) emit(etype, code uint16, value int32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return ErrDriverUnavailable
	}
	var buf [24]byte
	binary.LittleEndian.PutUint16(buf[16:18], etype)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	if _, err := unix.Write(n.fd, buf[:]); err != nil {
		return err
	}
	return nil
}

func (n *uinputNode) emitAndSync(etype, code uint16, value int32) error {
	if err := n.emit(etype, code, value); err != nil {
		return err
	}
	return n.emit(evSyn, synReport, 0)
}

func (n *uinputNode) destroy() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return nil
	}
	n.destroyed = true
	err := ioctlInt(n.fd, uiDevDestroy(), 0)
	unix.Close(n.fd)
	return err
}

type uinputGamepad struct {
	node *uinputNode
}

func (g *uinputGamepad) SetButton(b Button, pressed bool) error {
	code, ok := buttonCodes[b]
	if !ok {
		return nil
	}
	var value int32
	if pressed {
		value = 1
	}
	return g.node.emitAndSync(evKey, code, value)
}

func (g *uinputGamepad) SetAxis(a Axis, value int16) error {
	code, ok := axisCodes[a]
	if !ok {
		return nil
	}
	return g.node.emitAndSync(evAbs, code, int32(value))
}

func (g *uinputGamepad) SetSlider(s Slider, value uint8) error {
	code, ok := sliderCodes[s]
	if !ok {
		return nil
	}
	return g.node.emitAndSync(evAbs, code, int32(value))
}

func (g *uinputGamepad) Close() error {
	return g.node.destroy()
}

type uinputKeyboard struct {
	node *uinputNode
}

func (k *uinputKeyboard) TypeText(text string) error {
	for _, r := range text {
		stroke, ok := keyFor(r)
		if !ok {
			continue
		}
		if stroke.shift {
			if err := k.node.emit(evKey, keyLeftShift, 1); err != nil {
				return err
			}
		}
		if err := k.node.emit(evKey, stroke.code, 1); err != nil {
			return err
		}
		if err := k.node.emit(evKey, stroke.code, 0); err != nil {
			return err
		}
		if stroke.shift {
			if err := k.node.emit(evKey, keyLeftShift, 0); err != nil {
				return err
			}
		}
		if err := k.node.emit(evSyn, synReport, 0); err != nil {
			return err
		}
	}
	return nil
}

type unavailableKeyboard struct {
	err error
}

func (k unavailableKeyboard) TypeText(string) error {
	return k.err
}

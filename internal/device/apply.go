package device

// Wire target ids come from the handheld layouts and are fixed; unknown ids
// are ignored rather than rejected so layout edits can't kill a session.

const axisMax = 32767

var buttonTargets = map[string]Button{
	"btn_a":      ButtonA,
	"btn_b":      ButtonB,
	"btn_x":      ButtonX,
	"btn_y":      ButtonY,
	"btn_lb":     ButtonLeftShoulder,
	"btn_rb":     ButtonRightShoulder,
	"dpad-up":    ButtonDpadUp,
	"dpad-down":  ButtonDpadDown,
	"dpad-left":  ButtonDpadLeft,
	"dpad-right": ButtonDpadRight,
	"menu":       ButtonStart,
	"clone":      ButtonBack,
}

// ApplyButton maps a wire button event onto the gamepad. The two trigger
// targets are boolean on the wire but sliders on the device, so a press is
// full scale and a release is zero.
func ApplyButton(g Gamepad, id string, pressed bool) error {
	if b, ok := buttonTargets[id]; ok {
		return g.SetButton(b, pressed)
	}

	switch id {
	case "btn_lt", "btn_rt":
		var value uint8
		if pressed {
			value = 255
		}
		slider := SliderLeftTrigger
		if id == "btn_rt" {
			slider = SliderRightTrigger
		}
		return g.SetSlider(slider, value)
	}
	return nil
}

// ApplyJoystick maps a wire stick position onto an axis pair. The wire
// convention is screen-down-positive, the device convention is
// axis-up-positive, so Y is inverted here.
func ApplyJoystick(g Gamepad, id string, x, y float64) error {
	ax := scaleAxis(x)
	ay := scaleAxis(-y)

	switch id {
	case "joy_l":
		if err := g.SetAxis(AxisLeftX, ax); err != nil {
			return err
		}
		return g.SetAxis(AxisLeftY, ay)
	case "joy_r":
		if err := g.SetAxis(AxisRightX, ax); err != nil {
			return err
		}
		return g.SetAxis(AxisRightY, ay)
	}
	return nil
}

func scaleAxis(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * axisMax)
}

package protocol

import (
	"errors"
	"testing"
)

func TestParse_ButtonEvent(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"button","id":"btn_a","pressed":true}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ev, ok := msg.(ButtonEvent)
	if !ok {
		t.Fatalf("expected ButtonEvent, got %T", msg)
	}
	if ev.ID != "btn_a" || !ev.Pressed {
		t.Errorf("ev = %+v, want id=btn_a pressed=true", ev)
	}
}

func TestParse_JoystickEvent(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"joystick","id":"joy_l","x":0.5,"y":-1}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ev, ok := msg.(JoystickEvent)
	if !ok {
		t.Fatalf("expected JoystickEvent, got %T", msg)
	}
	if ev.ID != "joy_l" || ev.X != 0.5 || ev.Y != -1 {
		t.Errorf("ev = %+v", ev)
	}
}

func TestParse_TextEvent(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"text","payload":"hello"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ev, ok := msg.(TextEvent)
	if !ok {
		t.Fatalf("expected TextEvent, got %T", msg)
	}
	if ev.Payload != "hello" {
		t.Errorf("payload = %q, want %q", ev.Payload, "hello")
	}
}

func TestParse_OTPVerify(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"otp_verify","otp":"123456"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ev, ok := msg.(OTPVerify)
	if !ok {
		t.Fatalf("expected OTPVerify, got %T", msg)
	}
	if ev.OTP != "123456" {
		t.Errorf("otp = %q, want %q", ev.OTP, "123456")
	}
}

func TestParse_Pong(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"pong"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := msg.(Pong); !ok {
		t.Fatalf("expected Pong, got %T", msg)
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"teleport"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"type":"button",`))
	if err == nil {
		t.Error("Parse should fail on malformed JSON")
	}
}

func TestIsBare(t *testing.T) {
	if !IsBare([]byte("My Phone")) {
		t.Error("plain text should be bare")
	}
	if IsBare([]byte(`{"type":"pong"}`)) {
		t.Error("JSON object should not be bare")
	}
	if IsBare([]byte("  \t")) {
		t.Error("whitespace-only payload should not be bare")
	}
	if !IsBare([]byte("  Pixel 8  ")) {
		t.Error("leading whitespace should not hide a bare name")
	}
}

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags, one per JSON frame on the session socket.
const (
	TypeButton    = "button"
	TypeJoystick  = "joystick"
	TypeText      = "text"
	TypeOTPVerify = "otp_verify"
	TypePong      = "pong"

	TypePing              = "ping"
	TypeConnectionSuccess = "connection_success"
	TypeOTPFailure        = "otp_failure"
)

// ErrUnknownType is returned by Parse for a frame whose type tag is not part
// of the protocol. The session stays open; the frame is dropped.
var ErrUnknownType = errors.New("unknown message type")

// ButtonEvent is a press or release of a single physical target.
type ButtonEvent struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Pressed bool   `json:"pressed"`
}

// JoystickEvent carries a stick position. X and Y are normalized to [-1, 1]
// with screen-down-positive Y; the host inverts Y when applying to a device.
type JoystickEvent struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// TextEvent is free-form keyboard input.
type TextEvent struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// OTPVerify is a client's pairing-code submission.
type OTPVerify struct {
	Type string `json:"type"`
	OTP  string `json:"otp"`
}

// Pong is the client's reply to a liveness probe.
type Pong struct {
	Type string `json:"type"`
}

// Ping is the host's liveness probe.
type Ping struct {
	Type string `json:"type"`
}

// ConnectionSuccess tells the client its session is verified and bound to a
// virtual controller.
type ConnectionSuccess struct {
	Type string `json:"type"`
}

// OTPFailure tells the client its submitted code was rejected.
type OTPFailure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Parse decodes a JSON frame into its typed message struct.
func Parse(data []byte) (interface{}, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case TypeButton:
		var msg ButtonEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeJoystick:
		var msg JoystickEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeText:
		var msg TextEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeOTPVerify:
		var msg OTPVerify
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePong:
		return Pong{Type: TypePong}, nil
	case TypePing:
		return Ping{Type: TypePing}, nil
	case TypeConnectionSuccess:
		return ConnectionSuccess{Type: TypeConnectionSuccess}, nil
	case TypeOTPFailure:
		var msg OTPFailure
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnknownType
	}
}

// IsBare reports whether a frame is the one-shot plain-text identification
// message rather than a structured protocol frame.
func IsBare(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] != '{'
}

// Marshal helpers. Each returns the encoded frame; the payloads are small and
// fixed-shape, so marshal errors cannot occur at runtime.

func NewButtonEvent(id string, pressed bool) []byte {
	return mustMarshal(ButtonEvent{Type: TypeButton, ID: id, Pressed: pressed})
}

func NewJoystickEvent(id string, x, y float64) []byte {
	return mustMarshal(JoystickEvent{Type: TypeJoystick, ID: id, X: x, Y: y})
}

func NewTextEvent(payload string) []byte {
	return mustMarshal(TextEvent{Type: TypeText, Payload: payload})
}

func NewOTPVerify(otp string) []byte {
	return mustMarshal(OTPVerify{Type: TypeOTPVerify, OTP: otp})
}

func NewPong() []byte {
	return mustMarshal(Pong{Type: TypePong})
}

func NewPing() []byte {
	return mustMarshal(Ping{Type: TypePing})
}

func NewConnectionSuccess() []byte {
	return mustMarshal(ConnectionSuccess{Type: TypeConnectionSuccess})
}

func NewOTPFailure(message string) []byte {
	return mustMarshal(OTPFailure{Type: TypeOTPFailure, Message: message})
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

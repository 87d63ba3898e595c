package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/device"
)

// UnknownDeviceName is the display-name sentinel a session carries until its
// identification message arrives.
const UnknownDeviceName = "Unknown Device"

// Origin is the entry path a session connected through.
type Origin string

const (
	// OriginManual sessions must pass the OTP challenge.
	OriginManual Origin = "manual"
	// OriginQR sessions came through the QR endpoint and are trusted at
	// accept time.
	OriginQR Origin = "qr"
)

// Session is one live connection. All fields that participate in the state
// machine (Verified, gamepad, LastHeartbeat, closed) are guarded by the
// server mutex; the session table is the sole owner of the record.
type Session struct {
	ID            uuid.UUID
	RemoteAddr    string
	DisplayName   string
	Origin        Origin
	Verified      bool
	LastHeartbeat time.Time

	gamepad device.Gamepad
	conn    *websocket.Conn
	send    chan []byte
	closed  bool
}

// trySendLocked enqueues a frame on the session's write pump without
// blocking. Caller must hold the server mutex; frames to a slow or closed
// session are dropped.
func (s *Session) trySendLocked(frame []byte) bool {
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Info is the read-only session view handed to observers and the HTTP
// surface.
type Info struct {
	ID          uuid.UUID `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	DisplayName string    `json:"display_name"`
	Origin      Origin    `json:"origin"`
	Verified    bool      `json:"verified"`
}

func (s *Session) info() Info {
	return Info{
		ID:          s.ID,
		RemoteAddr:  s.RemoteAddr,
		DisplayName: s.DisplayName,
		Origin:      s.Origin,
		Verified:    s.Verified,
	}
}

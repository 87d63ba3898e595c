// Package client implements the handheld-side session state machine: it
// connects to a discovered host, performs the pairing handshake, answers
// liveness probes, and forwards local input while connected.
package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/protocol"
)

// State is the externally visible connection state. OTP verification is a
// sub-phase of Connecting; there is no separate awaiting-code state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrNotConnected is returned for operations that need a live socket.
var ErrNotConnected = errors.New("not connected")

// Callbacks surface connection events to the consumer. Either may be nil.
// OnConnectionFailed carries a user-facing reason plus the specific cause.
type Callbacks struct {
	OnStateChange      func(State)
	OnConnectionFailed func(reason, detail string)
}

// Client is a session client for one host at a time.
type Client struct {
	displayName string
	cb          Callbacks

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	writeMu sync.Mutex
}

func New(displayName string, cb Callbacks) *Client {
	return &Client{
		displayName: displayName,
		cb:          cb,
		state:       StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens a session to endpoint. It is a no-op unless the client is
// currently Disconnected. The local display name is sent immediately on
// open; for trusted (QR-scanned) endpoints the host replies with success
// without an OTP exchange.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.emitState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.emitState(StateDisconnected)
		c.emitFailure("could not connect", err.Error())
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info().Str("endpoint", endpoint).Msg("session opened")
	if err := c.writeRaw(websocket.TextMessage, []byte(c.displayName)); err != nil {
		log.Warn().Err(err).Msg("failed to send identification")
	}

	go c.readLoop(conn)
	return nil
}

// SubmitOTP sends the pairing code the user entered.
func (c *Client) SubmitOTP(code string) error {
	c.mu.Lock()
	ok := c.state != StateDisconnected && c.conn != nil
	c.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	return c.writeRaw(websocket.TextMessage, protocol.NewOTPVerify(code))
}

// SendInput transmits an encoded input frame while Connected and silently
// drops it otherwise; stale input after a disconnect is discarded, never
// queued.
func (c *Client) SendInput(frame []byte) error {
	c.mu.Lock()
	ok := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.writeRaw(websocket.TextMessage, frame)
}

// SendButton forwards a button press or release.
func (c *Client) SendButton(id string, pressed bool) error {
	return c.SendInput(protocol.NewButtonEvent(id, pressed))
}

// SendJoystick forwards a stick position.
func (c *Client) SendJoystick(id string, x, y float64) error {
	return c.SendInput(protocol.NewJoystickEvent(id, x, y))
}

// SendText forwards free-form keyboard text.
func (c *Client) SendText(payload string) error {
	return c.SendInput(protocol.NewTextEvent(payload))
}

// Disconnect closes the session deliberately. The state transition happens
// when the read loop observes the close.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeRaw(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "user disconnected"))
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(err)
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Debug().Err(err).Msg("dropping unparseable host frame")
		return
	}

	switch m := msg.(type) {
	case protocol.Ping:
		// The host's timeout is only a few probe intervals away; reply now,
		// never batch.
		if err := c.writeRaw(websocket.TextMessage, protocol.NewPong()); err != nil {
			log.Warn().Err(err).Msg("failed to answer liveness probe")
		}
	case protocol.ConnectionSuccess:
		c.mu.Lock()
		already := c.state == StateConnected
		c.state = StateConnected
		c.mu.Unlock()
		if !already {
			// Re-send the name so a host that verified before reading the
			// identification still learns it.
			c.writeRaw(websocket.TextMessage, []byte(c.displayName))
			log.Info().Msg("session verified by host")
			c.emitState(StateConnected)
		}
	case protocol.OTPFailure:
		log.Info().Str("message", m.Message).Msg("pairing rejected")
		c.emitFailure("pairing failed", m.Message)
		c.Disconnect()
	default:
		// Host-bound message types are never expected here.
	}
}

// handleClosed runs exactly once per live socket: the conn field is the
// latch. A non-normal close while Connected surfaces a single
// connection-lost signal.
func (c *Client) handleClosed(err error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == StateConnected
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.emitState(StateDisconnected)
	if wasConnected && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Warn().Err(err).Msg("session lost")
		c.emitFailure("connection lost", err.Error())
	} else {
		log.Info().Msg("session closed")
	}
}

func (c *Client) writeRaw(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(messageType, data)
}

func (c *Client) emitState(state State) {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(state)
	}
}

func (c *Client) emitFailure(reason, detail string) {
	if c.cb.OnConnectionFailed != nil {
		c.cb.OnConnectionFailed(reason, detail)
	}
}

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/protocol"
)

// stubHost is a minimal session host: it records every inbound frame and
// lets the test push frames to the client.
type stubHost struct {
	ts     *httptest.Server
	mu     sync.Mutex
	conn   *websocket.Conn
	frames chan []byte
	opened chan struct{}
}

func newStubHost(t *testing.T) *stubHost {
	t.Helper()
	h := &stubHost{
		frames: make(chan []byte, 64),
		opened: make(chan struct{}, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conn = conn
		h.mu.Unlock()
		h.opened <- struct{}{}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.frames <- data
		}
	}))
	t.Cleanup(h.ts.Close)
	return h
}

func (h *stubHost) url() string {
	return "ws" + strings.TrimPrefix(h.ts.URL, "http")
}

func (h *stubHost) send(t *testing.T, frame []byte) {
	t.Helper()
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected to stub host")
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("stub send failed: %v", err)
	}
}

func (h *stubHost) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-h.frames:
		return data
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a client frame")
		return nil
	}
}

func (h *stubHost) closeAbnormally(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected")
	}
	conn.Close()
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	failures []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnConnectionFailed: func(reason, detail string) {
			r.mu.Lock()
			r.failures = append(r.failures, reason)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnect_SendsIdentificationImmediately(t *testing.T) {
	host := newStubHost(t)
	c := New("Phone", Callbacks{})

	if err := c.Connect(context.Background(), host.url()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if got := string(host.nextFrame(t)); got != "Phone" {
		t.Errorf("first frame = %q, want bare display name", got)
	}
	if c.State() != StateConnecting {
		t.Errorf("state = %s, want connecting before the host replies", c.State())
	}
}

func TestConnect_NoOpUnlessDisconnected(t *testing.T) {
	host := newStubHost(t)
	c := New("Phone", Callbacks{})

	if err := c.Connect(context.Background(), host.url()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	<-host.opened
	host.nextFrame(t)

	if err := c.Connect(context.Background(), host.url()); err != nil {
		t.Errorf("second Connect should be a silent no-op, got %v", err)
	}
	select {
	case <-host.opened:
		t.Error("second Connect must not open another socket")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConnect_FailureSurfacesAndReturnsToDisconnected(t *testing.T) {
	rec := &recorder{}
	c := New("Phone", rec.callbacks())

	err := c.Connect(context.Background(), "ws://127.0.0.1:1/")
	if err == nil {
		t.Fatal("Connect to a dead endpoint should fail")
	}
	if c.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}
	if rec.failureCount() != 1 {
		t.Errorf("failures = %d, want 1", rec.failureCount())
	}
}

func TestPing_AnsweredImmediately(t *testing.T) {
	host := newStubHost(t)
	c := New("Phone", Callbacks{})
	c.Connect(context.Background(), host.url())
	host.nextFrame(t) // identification

	host.send(t, protocol.NewPing())
	msg, err := protocol.Parse(host.nextFrame(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := msg.(protocol.Pong); !ok {
		t.Errorf("expected pong, got %T", msg)
	}
}

func TestConnectionSuccess_TransitionsAndResendsName(t *testing.T) {
	host := newStubHost(t)
	rec := &recorder{}
	c := New("Phone", rec.callbacks())
	c.Connect(context.Background(), host.url())
	host.nextFrame(t) // identification

	host.send(t, protocol.NewConnectionSuccess())
	if got := string(host.nextFrame(t)); got != "Phone" {
		t.Errorf("frame after success = %q, want re-sent name", got)
	}
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })
}

func TestOTPFlow_SubmitAndFailureForcesDisconnect(t *testing.T) {
	host := newStubHost(t)
	rec := &recorder{}
	c := New("Phone", rec.callbacks())
	c.Connect(context.Background(), host.url())
	host.nextFrame(t) // identification

	if err := c.SubmitOTP("123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	msg, err := protocol.Parse(host.nextFrame(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	verify, ok := msg.(protocol.OTPVerify)
	if !ok || verify.OTP != "123456" {
		t.Fatalf("frame = %#v, want otp_verify 123456", msg)
	}

	host.send(t, protocol.NewOTPFailure("Invalid OTP"))
	waitFor(t, "disconnect after failure", func() bool { return c.State() == StateDisconnected })
	if rec.failureCount() != 1 {
		t.Errorf("failures = %d, want 1", rec.failureCount())
	}
}

func TestSendInput_OnlyWhileConnected(t *testing.T) {
	host := newStubHost(t)
	c := New("Phone", Callbacks{})
	c.Connect(context.Background(), host.url())
	host.nextFrame(t) // identification

	// Connecting but not Connected: input is dropped, not an error.
	if err := c.SendButton("btn_a", true); err != nil {
		t.Errorf("SendButton while connecting = %v, want nil drop", err)
	}

	host.send(t, protocol.NewConnectionSuccess())
	host.nextFrame(t) // re-sent name
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })

	if err := c.SendJoystick("joy_l", 0.25, -0.5); err != nil {
		t.Fatalf("SendJoystick failed: %v", err)
	}
	msg, err := protocol.Parse(host.nextFrame(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	joy, ok := msg.(protocol.JoystickEvent)
	if !ok || joy.ID != "joy_l" || joy.X != 0.25 || joy.Y != -0.5 {
		t.Errorf("frame = %#v, want the joystick event", msg)
	}

	c.Disconnect()
	waitFor(t, "disconnected", func() bool { return c.State() == StateDisconnected })
	if err := c.SendText("late"); err != nil {
		t.Errorf("SendText after disconnect = %v, want nil drop", err)
	}
}

func TestAbnormalClose_SignalsConnectionLostOnce(t *testing.T) {
	host := newStubHost(t)
	rec := &recorder{}
	c := New("Phone", rec.callbacks())
	c.Connect(context.Background(), host.url())
	host.nextFrame(t)

	host.send(t, protocol.NewConnectionSuccess())
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })

	host.closeAbnormally(t)
	waitFor(t, "disconnected", func() bool { return c.State() == StateDisconnected })
	waitFor(t, "lost signal", func() bool { return rec.failureCount() == 1 })

	time.Sleep(100 * time.Millisecond)
	if rec.failureCount() != 1 {
		t.Errorf("failures = %d, want exactly one lost signal", rec.failureCount())
	}
}

func TestUserDisconnect_NoLostSignal(t *testing.T) {
	host := newStubHost(t)
	rec := &recorder{}
	c := New("Phone", rec.callbacks())
	c.Connect(context.Background(), host.url())
	host.nextFrame(t)
	host.send(t, protocol.NewConnectionSuccess())
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })

	c.Disconnect()
	waitFor(t, "disconnected", func() bool { return c.State() == StateDisconnected })
	if rec.failureCount() != 0 {
		t.Errorf("failures = %d, want none for a deliberate disconnect", rec.failureCount())
	}
}

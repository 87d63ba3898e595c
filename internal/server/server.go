// Package server owns the host-side session core: the WebSocket endpoint,
// the table of live client sessions, the per-session authentication state
// machine, and the heartbeat monitor that evicts dead clients.
package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/device"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/otp"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/protocol"
)

// Config holds the session server's tunables.
type Config struct {
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	HeartbeatTick   time.Duration
	PingAfter       time.Duration
	TimeoutAfter    time.Duration
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  4096,
		SendBuffer:      64,
		HeartbeatTick:   1 * time.Second,
		PingAfter:       3 * time.Second,
		TimeoutAfter:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Server accepts session connections and drives the per-session protocol.
// One mutex guards the session table and every state-machine field,
// including device bind and release, so a verification racing a timeout
// eviction cannot leak a device handle.
type Server struct {
	cfg      Config
	auth     *otp.Authenticator
	driver   device.Driver
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	onChange func()

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// New creates a session server. onChange may be nil; when set it fires after
// every observable session-table change (connect, identify, verify, remove).
func New(cfg Config, auth *otp.Authenticator, driver device.Driver, clock clockwork.Clock, onChange func()) *Server {
	return &Server{
		cfg:    cfg,
		auth:   auth,
		driver: driver,
		clock:  clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onChange: onChange,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Degraded reports whether the virtual-input driver is unusable. The server
// still accepts connections, but no session can become verified.
func (s *Server) Degraded() bool {
	return s.driver == nil || !s.driver.Available()
}

// Handler returns the HTTP surface: the manual and QR WebSocket endpoints
// plus the JSON endpoints the desktop shell polls.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSession(OriginManual))
	mux.HandleFunc("/qr", s.handleSession(OriginQR))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.Sessions()); err != nil {
			log.Error().Err(err).Msg("failed to encode session list")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func (s *Server) handleSession(origin Origin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}
		s.accept(conn, r.RemoteAddr, origin)
	}
}

func (s *Server) accept(conn *websocket.Conn, remoteAddr string, origin Origin) {
	sess := &Session{
		ID:            uuid.New(),
		RemoteAddr:    remoteAddr,
		DisplayName:   UnknownDeviceName,
		Origin:        origin,
		LastHeartbeat: s.clock.Now(),
		conn:          conn,
		send:          make(chan []byte, s.cfg.SendBuffer),
	}

	s.mu.Lock()
	if origin == OriginQR {
		// The trusted path stands or falls atomically: no device, no
		// session.
		pad, err := s.createGamepadLocked()
		if err != nil {
			s.mu.Unlock()
			log.Error().Err(err).
				Str("session_id", sess.ID.String()).
				Msg("device creation failed for trusted connection, closing")
			conn.Close()
			return
		}
		sess.Verified = true
		sess.gamepad = pad
		sess.trySendLocked(protocol.NewConnectionSuccess())
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("remote", remoteAddr).
		Str("origin", string(origin)).
		Bool("verified", sess.Verified).
		Msg("session connected")

	s.notify()
	go s.writePump(sess)
	go s.readPump(sess)
}

func (s *Server) createGamepadLocked() (device.Gamepad, error) {
	if s.driver == nil || !s.driver.Available() {
		return nil, device.ErrDriverUnavailable
	}
	return s.driver.CreateGamepad()
}

// readPump reads frames off one socket and dispatches them in arrival order.
// It exits on any read error, which covers graceful closes, transport
// failures, and the heartbeat monitor force-closing the socket.
func (s *Server) readPump(sess *Session) {
	defer s.teardown(sess, "socket closed")

	sess.conn.SetReadLimit(s.cfg.MaxMessageSize)
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("session read error")
			}
			return
		}
		s.dispatch(sess, data)
	}
}

// writePump serializes all writes to one socket: protocol replies and
// liveness probes both go through the session's send channel.
func (s *Server) writePump(sess *Session) {
	for frame := range sess.send {
		sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("session write failed")
			sess.conn.Close()
			// Drain until teardown closes the channel.
			for range sess.send {
			}
			return
		}
	}
	// Channel closed by teardown: say goodbye if the socket is still up.
	sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	sess.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// dispatch handles one inbound frame under the table lock. Handlers never
// block: device calls complete promptly and socket writes are queued.
func (s *Server) dispatch(sess *Session, data []byte) {
	changed := s.handleFrame(sess, data)
	if changed {
		s.notify()
	}
}

func (s *Server) handleFrame(sess *Session, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.closed {
		return false
	}

	// Every inbound frame is proof of life.
	sess.LastHeartbeat = s.clock.Now()

	msg, err := protocol.Parse(data)
	if err == nil {
		switch m := msg.(type) {
		case protocol.Pong:
			return false
		case protocol.TextEvent:
			// Free-form text intentionally bypasses the OTP gate, matching
			// the shipped desktop behavior.
			s.handleText(sess, m)
			return false
		case protocol.OTPVerify:
			return s.handleOTPLocked(sess, m)
		case protocol.ButtonEvent:
			if sess.Verified && sess.gamepad != nil {
				if err := device.ApplyButton(sess.gamepad, m.ID, m.Pressed); err != nil {
					log.Warn().Err(err).Str("session_id", sess.ID.String()).Str("target", m.ID).Msg("button apply failed")
				}
			}
			return false
		case protocol.JoystickEvent:
			if sess.Verified && sess.gamepad != nil {
				if err := device.ApplyJoystick(sess.gamepad, m.ID, m.X, m.Y); err != nil {
					log.Warn().Err(err).Str("session_id", sess.ID.String()).Str("target", m.ID).Msg("joystick apply failed")
				}
			}
			return false
		default:
			return false
		}
	}

	// Not a structured frame. A session still carrying the name sentinel
	// identifies itself with a single bare-text message.
	if sess.DisplayName == UnknownDeviceName && protocol.IsBare(data) {
		sess.DisplayName = string(data)
		log.Info().
			Str("session_id", sess.ID.String()).
			Str("display_name", sess.DisplayName).
			Msg("session identified")
		return true
	}

	log.Debug().
		Str("session_id", sess.ID.String()).
		Err(err).
		Msg("dropping malformed frame")
	return false
}

func (s *Server) handleText(sess *Session, m protocol.TextEvent) {
	if m.Payload == "" || s.driver == nil {
		return
	}
	if err := s.driver.Keyboard().TypeText(m.Payload); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("text input failed")
	}
}

func (s *Server) handleOTPLocked(sess *Session, m protocol.OTPVerify) bool {
	if sess.Verified {
		return false
	}
	if !s.auth.Verify(m.OTP) {
		log.Info().Str("session_id", sess.ID.String()).Msg("pairing code rejected")
		sess.trySendLocked(protocol.NewOTPFailure("Invalid OTP"))
		return false
	}

	pad, err := s.createGamepadLocked()
	if err != nil {
		// The code was right but no device can back the session; the client
		// is told and the session stays unverified.
		log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("device creation failed after verification")
		sess.trySendLocked(protocol.NewOTPFailure("virtual controller unavailable"))
		return false
	}

	sess.Verified = true
	sess.gamepad = pad
	sess.trySendLocked(protocol.NewConnectionSuccess())
	log.Info().
		Str("session_id", sess.ID.String()).
		Str("display_name", sess.DisplayName).
		Msg("session verified")
	return true
}

// teardown removes a session, releasing its device exactly once. Safe to
// call from the read pump, the heartbeat monitor, Disconnect, and Shutdown
// concurrently; only the first caller does the work.
func (s *Server) teardown(sess *Session, reason string) {
	s.mu.Lock()
	if sess.closed {
		s.mu.Unlock()
		return
	}
	sess.closed = true
	if sess.gamepad != nil {
		if err := sess.gamepad.Close(); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("device release failed")
		}
		sess.gamepad = nil
	}
	delete(s.sessions, sess.ID)
	close(sess.send)
	s.mu.Unlock()

	sess.conn.Close()
	log.Info().
		Str("session_id", sess.ID.String()).
		Str("display_name", sess.DisplayName).
		Str("reason", reason).
		Msg("session removed")
	s.notify()
}

// Disconnect force-closes one session by id.
func (s *Server) Disconnect(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		s.teardown(sess, "disconnected by host")
	}
}

// Shutdown tears down every live session, releasing every bound device.
func (s *Server) Shutdown() {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		s.teardown(sess, "host shutting down")
	}
}

// Sessions returns a snapshot of the live sessions for display.
func (s *Server) Sessions() []Info {
	s.mu.Lock()
	out := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (s *Server) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

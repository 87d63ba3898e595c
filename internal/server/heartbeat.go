package server

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/protocol"
)

// RunHeartbeat sweeps the session table once per tick until ctx is
// cancelled. Timeouts are the sole eviction path for silent clients,
// independent of socket-level errors.
func (s *Server) RunHeartbeat(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.HeartbeatTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("heartbeat monitor stopped")
			return
		case <-ticker.Chan():
			s.sweep()
		}
	}
}

// sweep pings idle sessions and evicts ones past the timeout threshold. The
// probe itself never refreshes LastHeartbeat; only the client's pong does,
// so a probe the client never received cannot fake liveness.
func (s *Server) sweep() {
	now := s.clock.Now()

	var evict []*Session
	s.mu.Lock()
	for _, sess := range s.sessions {
		idle := now.Sub(sess.LastHeartbeat)
		if idle > s.cfg.TimeoutAfter {
			evict = append(evict, sess)
			continue
		}
		if idle > s.cfg.PingAfter {
			sess.trySendLocked(protocol.NewPing())
		}
	}
	s.mu.Unlock()

	for _, sess := range evict {
		log.Warn().
			Str("session_id", sess.ID.String()).
			Str("display_name", sess.DisplayName).
			Msg("session timed out")
		s.teardown(sess, "heartbeat timeout")
	}
}

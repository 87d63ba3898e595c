package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Broadcaster announces the host on the local subnet. Send failures are
// logged and the loop keeps going; only socket creation can fail, and that
// happens in NewBroadcaster so the caller can start the host without
// discovery.
type Broadcaster struct {
	conn     *net.UDPConn
	target   *net.UDPAddr
	payload  []byte
	interval time.Duration
	clock    clockwork.Clock
}

func NewBroadcaster(name, endpoint string, port int, interval time.Duration, clock clockwork.Clock) (*Broadcaster, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to open broadcast socket: %w", err)
	}

	return &Broadcaster{
		conn:     conn,
		target:   &net.UDPAddr{IP: net.IPv4bcast, Port: port},
		payload:  Datagram(name, endpoint),
		interval: interval,
		clock:    clock,
	}, nil
}

// Run broadcasts immediately and then once per interval until ctx is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	log.Info().
		Str("target", b.target.String()).
		Dur("interval", b.interval).
		Msg("discovery broadcast started")

	b.send()

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("discovery broadcast stopped")
			return
		case <-ticker.Chan():
			b.send()
		}
	}
}

func (b *Broadcaster) send() {
	if _, err := b.conn.WriteToUDP(b.payload, b.target); err != nil {
		// Transient broadcast failures are common on some networks.
		log.Debug().Err(err).Msg("discovery broadcast failed")
	}
}

func (b *Broadcaster) Close() error {
	return b.conn.Close()
}

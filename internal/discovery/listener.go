package discovery

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Listener collects discovery datagrams into a deduplicated set keyed by
// endpoint. First-seen wins; later datagrams for the same endpoint are
// dropped even when the name differs. It survives repeated Start/Stop cycles
// (the handheld stops it whenever the app is backgrounded).
type Listener struct {
	port  int
	clock clockwork.Clock

	mu       sync.Mutex
	conn     *net.UDPConn
	records  map[string]Record
	scanning bool
	scanGen  int
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewListener(port int, clock clockwork.Clock) *Listener {
	return &Listener{
		port:    port,
		clock:   clock,
		records: make(map[string]Record),
	}
}

// Start binds the discovery port and begins reading. Calling Start on a
// running listener is a no-op.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: l.port})
	if err != nil {
		return err
	}
	l.conn = conn
	l.done = make(chan struct{})

	l.wg.Add(1)
	go l.readLoop(conn, l.done)

	log.Debug().Int("port", l.port).Msg("discovery listener started")
	return nil
}

// Stop closes the socket and ends the current scan window. Previously
// discovered records remain visible. Idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.conn == nil {
		l.mu.Unlock()
		return
	}
	conn := l.conn
	done := l.done
	l.conn = nil
	l.scanning = false
	l.scanGen++
	l.mu.Unlock()

	close(done)
	conn.Close()
	l.wg.Wait()
	log.Debug().Msg("discovery listener stopped")
}

// Scan clears the discovered set and opens a fresh scan window. When the
// window elapses scanning stops but the records stay visible until the next
// Scan.
func (l *Listener) Scan(window time.Duration) {
	l.mu.Lock()
	l.records = make(map[string]Record)
	l.scanning = true
	l.scanGen++
	gen := l.scanGen
	l.mu.Unlock()

	l.clock.AfterFunc(window, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.scanGen == gen {
			l.scanning = false
		}
	})
}

// Scanning reports whether a scan window is open.
func (l *Listener) Scanning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scanning
}

// Records returns a snapshot of the discovered hosts, ordered by endpoint.
func (l *Listener) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

func (l *Listener) readLoop(conn *net.UDPConn, done chan struct{}) {
	defer l.wg.Done()

	buf := make([]byte, 1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		// Short read deadline so Stop is picked up promptly.
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-done:
				return
			default:
			}
			log.Debug().Err(err).Msg("discovery read error")
			continue
		}

		record, err := parseDatagram(buf[:n])
		if err != nil {
			continue
		}
		l.add(record)
	}
}

func (l *Listener) add(record Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.scanning {
		return
	}
	if _, seen := l.records[record.Endpoint]; seen {
		return
	}
	l.records[record.Endpoint] = record
	log.Info().Str("name", record.Name).Str("endpoint", record.Endpoint).Msg("host discovered")
}

package mapping

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Reference combo timings.
const (
	DefaultHold = 80 * time.Millisecond
	DefaultGap  = 50 * time.Millisecond
)

// Sink receives the physical press/release events a sequencer emits.
type Sink func(physicalID string, pressed bool)

// Sequencer turns logical press/release pairs into physical events. A plain
// mapping passes the caller's own press/release timing through untouched; a
// combo fires its full timed press-release sequence on the press and ignores
// the release.
type Sequencer struct {
	table Table
	clock clockwork.Clock
	hold  time.Duration
	gap   time.Duration
	sink  Sink
}

func NewSequencer(table Table, clock clockwork.Clock, sink Sink) *Sequencer {
	return &Sequencer{
		table: table,
		clock: clock,
		hold:  DefaultHold,
		gap:   DefaultGap,
		sink:  sink,
	}
}

// SetTimings overrides the combo hold and gap durations.
func (s *Sequencer) SetTimings(hold, gap time.Duration) {
	s.hold = hold
	s.gap = gap
}

// Press handles a logical press. Combos run synchronously; callers that must
// not block run Press on its own goroutine.
func (s *Sequencer) Press(logicalID string) {
	ids := s.table.Resolve(logicalID)
	if len(ids) == 1 {
		s.sink(ids[0], true)
		return
	}
	for i, id := range ids {
		if i > 0 {
			s.clock.Sleep(s.gap)
		}
		s.sink(id, true)
		s.clock.Sleep(s.hold)
		s.sink(id, false)
	}
}

// Release handles a logical release. Combos already released themselves
// during Press.
func (s *Sequencer) Release(logicalID string) {
	ids := s.table.Resolve(logicalID)
	if len(ids) == 1 {
		s.sink(ids[0], false)
	}
}

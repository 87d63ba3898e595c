package otp

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Rotator drives periodic code rotation. It rotates once immediately so the
// host never sits without a valid code, then again every period until the
// context is cancelled.
type Rotator struct {
	auth     *Authenticator
	period   time.Duration
	clock    clockwork.Clock
	onRotate func(code string)
}

// NewRotator creates a rotator. onRotate may be nil; when set it is called
// with each new code so the shell can display it.
func NewRotator(auth *Authenticator, period time.Duration, clock clockwork.Clock, onRotate func(string)) *Rotator {
	return &Rotator{
		auth:     auth,
		period:   period,
		clock:    clock,
		onRotate: onRotate,
	}
}

func (r *Rotator) Run(ctx context.Context) {
	r.rotate()

	ticker := r.clock.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("otp rotator stopped")
			return
		case <-ticker.Chan():
			r.rotate()
		}
	}
}

func (r *Rotator) rotate() {
	code, err := r.auth.Rotate()
	if err != nil {
		log.Error().Err(err).Msg("failed to rotate pairing code")
		return
	}
	log.Info().Msg("pairing code rotated")
	if r.onRotate != nil {
		r.onRotate(code)
	}
}

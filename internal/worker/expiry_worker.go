package worker

import (
	"context"
	"time"

	"github.com/certeon/certexam-backend/internal/service"
	"github.com/rs/zerolog"
)

// expiryGrace is added on top of each course's exam duration before the
// server-side cut, absorbing clock skew and in-flight submits.
const expiryGrace = 30 * time.Second

// ExpiryWorker force-completes IN_PROGRESS sessions whose time allowance
// ran out. Expired sessions complete with TIME_EXPIRED and are scored on
// whatever answers were saved; the expiry is authoritative server-side,
// so a client that never submits cannot keep a session open.
type ExpiryWorker struct {
	sessionService *service.SessionService
	interval       time.Duration
	log            zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker sweeping on the given interval.
func NewExpiryWorker(sessionService *service.SessionService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessionService: sessionService,
		interval:       interval,
		log:            log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopping")
			return
		case <-ticker.C:
			swept, err := w.sessionService.SweepExpired(ctx, expiryGrace)
			if err != nil {
				w.log.Error().Err(err).Msg("Sweep failed")
				continue
			}
			if swept > 0 {
				w.log.Info().Int("sessions", swept).Msg("Expired sessions completed")
			}
		}
	}
}

package guarantee

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/windingtree/simard/internal/metrics"
)

// Monitor periodically surveys guarantees past their expiration that
// were never claimed or canceled. Expired guarantees keep reserving the
// initiator's balance until the initiator cancels them, so the count is
// worth watching.
type Monitor struct {
	db            *Database
	sweepInterval time.Duration
}

func NewMonitor(db *Database) *Monitor {
	return &Monitor{
		db:            db,
		sweepInterval: 5 * time.Minute,
	}
}

// Start begins the expiry survey loop
func (m *Monitor) Start(ctx context.Context) {
	logger := log.With().Str("component", "guarantee_monitor").Logger()
	logger.Info().Msg("starting guarantee expiry monitor")

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down guarantee expiry monitor")
			return
		case <-ticker.C:
			if err := m.sweep(); err != nil {
				logger.Error().Err(err).Msg("failed to survey expired guarantees")
			}
		}
	}
}

func (m *Monitor) sweep() error {
	count, err := m.db.CountExpiredUnclaimed(time.Now())
	if err != nil {
		return err
	}

	metrics.ExpiredUnclaimedGuarantees.Set(float64(count))
	if count > 0 {
		log.Warn().
			Str("component", "guarantee_monitor").
			Int64("expired_unclaimed", count).
			Msg("expired guarantees still reserving balance")
	}
	return nil
}

// DB exposes the guarantee database for the monitor wiring.
func (s *Service) DB() *Database {
	return s.db
}

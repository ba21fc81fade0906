package round

import (
	"time"

	"go-crash/internal/config"
	"go-crash/internal/http-server/model"
)

// runTicker publishes the climbing multiplier at a fixed rate while the
// round is ACTIVE. It reads only the immutable pair fixed at start (crash
// multiplier, actual start time), holds no lock, and exits either when the
// crash delay elapses or when the stop signal closes. The stop signal is
// what ends a force-finished round early: a clamped multiplier can put the
// natural delay hours out, and a finished round must not keep broadcasting.
// The crash event itself is the crash job's to publish.
func (m *Manager) runTicker(round model.Round, stop <-chan struct{}) {
	if round.ActualStartAt == nil {
		return
	}

	start := *round.ActualStartAt
	delay := round.CrashDelay()

	ticker := time.NewTicker(config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if now.Sub(start) >= delay {
				return
			}

			m.publishEvent("round:tick", map[string]interface{}{
				"round_uuid": round.UUID.String(),
				"multiplier": round.MultiplierAt(now),
			})
		}
	}
}

func (m *Manager) newTickerStop(roundID int64) chan struct{} {
	m.tickerMu.Lock()
	defer m.tickerMu.Unlock()

	stop := make(chan struct{})
	m.tickerStops[roundID] = stop

	return stop
}

// stopTicker is idempotent and safe for rounds that never ran a ticker.
func (m *Manager) stopTicker(roundID int64) {
	m.tickerMu.Lock()
	defer m.tickerMu.Unlock()

	if stop, ok := m.tickerStops[roundID]; ok {
		close(stop)
		delete(m.tickerStops, roundID)
	}
}

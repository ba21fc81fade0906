package round

import (
	"time"

	"golang.org/x/exp/slog"

	"go-crash/internal/config"
)

// Watchdog periodically reconciles the lifecycle: it repairs lost timers,
// discards rounds that never ran and re-arms round creation after failures.
// It tolerates process restarts because every decision is re-derived from
// stored state.
type Watchdog struct {
	log     *slog.Logger
	manager *Manager
	cfg     config.Watchdog
	stop    chan struct{}
}

func NewWatchdog(log *slog.Logger, manager *Manager, cfg config.Watchdog) *Watchdog {
	return &Watchdog{
		log:     log,
		manager: manager,
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
}

func (w *Watchdog) Run() {
	w.log.Info("watchdog started", slog.String("interval", w.cfg.SweepInterval.String()))

	go func() {
		ticker := time.NewTicker(w.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				w.manager.Reconcile(now, w.cfg)
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *Watchdog) Stop() {
	close(w.stop)
}

package round

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"go-crash/internal/http-server/model"
	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/lib/logger/sl"
	wshandler "go-crash/internal/ws/handler"
)

// PublicState is the client-safe view of the current round: never the crash
// multiplier, never the raw server seed.
func (m *Manager) PublicState(now time.Time) (map[string]interface{}, error) {
	const op = "crash.round.PublicState"

	current, err := m.roundRep.GetCurrentRound()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if current == nil {
		return map[string]interface{}{"status": "idle"}, nil
	}

	data := map[string]interface{}{
		"round_uuid":         current.UUID.String(),
		"status":             string(current.Status),
		"client_seed":        current.ClientSeed,
		"nonce":              current.Nonce,
		"scheduled_start_at": current.ScheduledStartAt.Format(time.RFC3339Nano),
	}

	if seed, _, err := m.outcomes.Reveal(current.ServerSeedID); err == nil && seed != nil {
		data["seed_hash"] = seed.SeedHash
	}

	switch current.Status {
	case model.RoundWaiting:
		left := current.ScheduledStartAt.Sub(now)
		if left < 0 {
			left = 0
		}

		data["seconds_left"] = int(math.Ceil(left.Seconds()))
	case model.RoundActive:
		data["multiplier"] = current.MultiplierAt(now)
		data["actual_start_at"] = current.ActualStartAt.Format(time.RFC3339Nano)
	}

	return data, nil
}

// Snapshot gives a new subscriber the state it missed: the current round and
// the recent crash history.
func (m *Manager) Snapshot() []wshandler.Message {
	frames := make([]wshandler.Message, 0, 2)

	state, err := m.PublicState(time.Now())
	if err != nil {
		m.log.Error("failed to build snapshot", sl.Err(err))
	} else {
		frames = append(frames, wshandler.Message{
			Channel: "crash",
			Event:   "round:snapshot",
			Data:    state,
		})
	}

	frames = append(frames, wshandler.Message{
		Channel: "crash",
		Event:   "round:history",
		Data: map[string]interface{}{
			"multipliers": m.history.Entries(0),
		},
	})

	return frames
}

type Current struct {
	log     *slog.Logger
	manager *Manager
}

func NewCurrent(log *slog.Logger, manager *Manager) *Current {
	return &Current{
		log:     log,
		manager: manager,
	}
}

type CurrentResponse struct {
	resp.Response
	Round map[string]interface{} `json:"round"`
}

func (c *Current) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.round.current.New"

		state, err := c.manager.PublicState(time.Now())
		if err != nil {
			c.log.Error("failed to load current round", slog.String("op", op), sl.Err(err))

			render.JSON(w, r, resp.Error("failed to load current round", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, CurrentResponse{
			Response: resp.OK(),
			Round:    state,
		})
	}
}

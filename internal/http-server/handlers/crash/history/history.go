package history

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	resp "go-crash/internal/lib/api/response"
)

// Capacity is the number of settled multipliers kept for display.
const Capacity = 20

type Loader interface {
	GetRecentCrashMultipliers(limit int) ([]float64, error)
}

// Buffer is the most-recent-first ring of settled crash multipliers. It is
// rebuilt from finished rounds at boot so history survives restarts.
type Buffer struct {
	mu      sync.RWMutex
	entries []float64
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Push(multiplier float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append([]float64{multiplier}, b.entries...)
	if len(b.entries) > Capacity {
		b.entries = b.entries[:Capacity]
	}
}

func (b *Buffer) Entries(limit int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.entries) {
		limit = len(b.entries)
	}

	out := make([]float64, limit)
	copy(out, b.entries[:limit])

	return out
}

func (b *Buffer) Load(loader Loader) error {
	const op = "crash.history.Load"

	multipliers, err := loader.GetRecentCrashMultipliers(Capacity)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = multipliers

	return nil
}

type History struct {
	log    *slog.Logger
	buffer *Buffer
}

func NewHistory(log *slog.Logger, buffer *Buffer) *History {
	return &History{
		log:    log,
		buffer: buffer,
	}
}

type Response struct {
	resp.Response
	Multipliers []float64 `json:"multipliers"`
}

func (h *History) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := Capacity

		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				render.JSON(w, r, resp.Error("invalid limit", http.StatusBadRequest))

				return
			}

			if parsed < limit {
				limit = parsed
			}
		}

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			Multipliers: h.buffer.Entries(limit),
		})
	}
}

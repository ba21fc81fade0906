package round

import (
	"time"

	"go-crash/internal/http-server/model"
)

type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionCrash
	ActionDiscard
)

// NextAction re-derives the correct transition for a round whose timer may
// have been lost. It is pure: callers apply the result through the guarded
// transitions, so observing the same round twice can never double-apply.
//
// WAITING rounds slightly past schedule are pushed through start; rounds
// overdue beyond the discard threshold never ran their window fairly and go
// straight to FINISHED. ACTIVE rounds crash once their crash delay elapsed,
// with the max round duration as a backstop against extreme multipliers.
func NextAction(r *model.Round, now time.Time, staleness, discard, maxRoundDuration time.Duration) Action {
	switch r.Status {
	case model.RoundWaiting:
		overdue := now.Sub(r.ScheduledStartAt)

		if overdue >= discard {
			return ActionDiscard
		}

		if overdue >= staleness {
			return ActionStart
		}
	case model.RoundActive:
		if r.ActualStartAt == nil {
			return ActionNone
		}

		elapsed := now.Sub(*r.ActualStartAt)

		if elapsed >= r.CrashDelay() || elapsed >= maxRoundDuration {
			return ActionCrash
		}
	}

	return ActionNone
}

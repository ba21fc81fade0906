package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-crash/internal/config"
)

func TestCrashDelay(t *testing.T) {
	cases := []struct {
		name       string
		multiplier float64
		want       time.Duration
	}{
		{name: "instant crash keeps the floor", multiplier: 1.0, want: config.MinCrashTime},
		{name: "short round keeps the floor", multiplier: 1.89, want: config.MinCrashTime},
		{name: "six x runs two seconds", multiplier: 6.0, want: 2 * time.Second},
		{name: "eleven x runs four seconds", multiplier: 11.0, want: 4 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			round := Round{CrashMultiplier: tc.multiplier}

			require.Equal(t, tc.want, round.CrashDelay())
		})
	}
}

func TestMultiplierAt(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	round := Round{
		Status:          RoundActive,
		CrashMultiplier: 11.0, // 4s delay
		ActualStartAt:   &start,
	}

	require.Equal(t, 1.0, round.MultiplierAt(start.Add(-time.Second)))
	require.Equal(t, 1.0, round.MultiplierAt(start))
	require.Equal(t, 3.5, round.MultiplierAt(start.Add(time.Second)))
	require.Equal(t, 6.0, round.MultiplierAt(start.Add(2*time.Second)))
	require.Equal(t, 11.0, round.MultiplierAt(start.Add(4*time.Second)))

	// never overshoots the crash point
	require.Equal(t, 11.0, round.MultiplierAt(start.Add(time.Hour)))
}

func TestMultiplierAtWithoutStart(t *testing.T) {
	round := Round{Status: RoundWaiting, CrashMultiplier: 5.0}

	require.Equal(t, 1.0, round.MultiplierAt(time.Now()))
}

func TestBetWindowOpen(t *testing.T) {
	scheduled := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	round := Round{Status: RoundWaiting, ScheduledStartAt: scheduled}

	require.True(t, round.BetWindowOpen(scheduled.Add(-time.Second)))
	require.False(t, round.BetWindowOpen(scheduled))
	require.False(t, round.BetWindowOpen(scheduled.Add(time.Second)))

	round.Status = RoundActive

	require.False(t, round.BetWindowOpen(scheduled.Add(-time.Second)))
}

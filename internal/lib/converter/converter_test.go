package converter

import "testing"

func TestAmountToCents(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   int64
	}{
		{
			name:   "Success",
			amount: 1.23,
			want:   123,
		},
		{
			name:   "FloatBoundary",
			amount: 19.99,
			want:   1999,
		},
		{
			name:   "Zero",
			amount: 0,
			want:   0,
		},
		{
			name:   "Negative",
			amount: -1.23,
			want:   -123,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := AmountToCents(tc.amount)
			if got != tc.want {
				t.Errorf("unexpected result, want: %d, got: %d", tc.want, got)
			}
		})
	}
}

func TestCentsToString(t *testing.T) {
	cases := []struct {
		name  string
		cents int64
		want  string
	}{
		{
			name:  "Success",
			cents: 123,
			want:  "1.23",
		},
		{
			name:  "Whole",
			cents: 5000,
			want:  "50.00",
		},
		{
			name:  "Zero",
			cents: 0,
			want:  "0.00",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := CentsToString(tc.cents)
			if got != tc.want {
				t.Errorf("unexpected result, want: %s, got: %s", tc.want, got)
			}
		})
	}
}

func TestPayout(t *testing.T) {
	cases := []struct {
		name       string
		stake      int64
		multiplier float64
		want       int64
	}{
		{
			name:       "Even",
			stake:      5000,
			multiplier: 2.0,
			want:       10000,
		},
		{
			name:       "FloorsRemainder",
			stake:      333,
			multiplier: 1.5,
			want:       499,
		},
		{
			name:       "InstantBust",
			stake:      5000,
			multiplier: 1.0,
			want:       5000,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Payout(tc.stake, tc.multiplier)
			if got != tc.want {
				t.Errorf("unexpected result, want: %d, got: %d", tc.want, got)
			}
		})
	}
}

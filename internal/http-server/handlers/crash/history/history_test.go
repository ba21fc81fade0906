package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	multipliers []float64
	err         error
}

func (f *fakeLoader) GetRecentCrashMultipliers(limit int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}

	if limit < len(f.multipliers) {
		return f.multipliers[:limit], nil
	}

	return f.multipliers, nil
}

func TestBufferPushFront(t *testing.T) {
	b := NewBuffer()

	b.Push(1.52)
	b.Push(14.37)
	b.Push(1.00)

	require.Equal(t, []float64{1.00, 14.37, 1.52}, b.Entries(0))
}

func TestBufferTruncatesToCapacity(t *testing.T) {
	b := NewBuffer()

	for i := 0; i < Capacity+5; i++ {
		b.Push(float64(i))
	}

	entries := b.Entries(0)

	require.Len(t, entries, Capacity)
	require.Equal(t, float64(Capacity+4), entries[0])
}

func TestBufferEntriesLimit(t *testing.T) {
	b := NewBuffer()

	b.Push(2.0)
	b.Push(3.0)
	b.Push(4.0)

	require.Equal(t, []float64{4.0, 3.0}, b.Entries(2))
	require.Len(t, b.Entries(50), 3)
}

func TestBufferLoad(t *testing.T) {
	b := NewBuffer()
	b.Push(9.99)

	err := b.Load(&fakeLoader{multipliers: []float64{3.11, 1.00, 2.45}})
	require.NoError(t, err)

	require.Equal(t, []float64{3.11, 1.00, 2.45}, b.Entries(0))
}

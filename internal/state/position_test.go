package state

import (
	"testing"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestPositionTrackerApplyFill(t *testing.T) {
	tr := NewPositionTracker()

	_, ok := tr.Position("X")
	assert.False(t, ok)

	fills := []struct {
		side schema.OrderSide
		size int64
		want int64
	}{
		{schema.OrderSideBuy, 3, 3},
		{schema.OrderSideSell, 1, 2},
		{schema.OrderSideBuy, 2, 4},
	}
	for _, f := range fills {
		pos, err := tr.ApplyFill("X", f.side, d(f.size))
		require.NoError(t, err)
		assert.True(t, pos.Equal(d(f.want)), "got %s want %d", pos, f.want)
	}

	pos, ok := tr.Position("X")
	require.True(t, ok)
	assert.True(t, pos.Equal(d(4)))

	_, ok = tr.Position("Y")
	assert.False(t, ok, "instruments do not share positions")
}

func TestPositionTrackerShort(t *testing.T) {
	tr := NewPositionTracker()
	pos, err := tr.ApplyFill("X", schema.OrderSideSell, d(2))
	require.NoError(t, err)
	assert.True(t, pos.Equal(d(-2)))
}

func TestPositionTrackerReplayDoubleCounts(t *testing.T) {
	tr := NewPositionTracker()
	_, _ = tr.ApplyFill("X", schema.OrderSideBuy, d(1))
	pos, _ := tr.ApplyFill("X", schema.OrderSideBuy, d(1))
	assert.True(t, pos.Equal(d(2)))
}

func TestPositionTrackerUnknownSide(t *testing.T) {
	tr := NewPositionTracker()
	pos, err := tr.ApplyFill("X", schema.OrderSideUnknown, d(5))
	assert.ErrorIs(t, err, exception.ErrOrderUnknownSide)
	assert.True(t, pos.IsZero())

	_, ok := tr.Position("X")
	assert.True(t, ok, "position is initialised on first reference")
}

func TestPositionTrackerSet(t *testing.T) {
	tr := NewPositionTracker()
	_, _ = tr.ApplyFill("X", schema.OrderSideBuy, d(3))
	tr.Set("X", d(-7))

	pos, _ := tr.Position("X")
	assert.True(t, pos.Equal(d(-7)))
	assert.Equal(t, 1, tr.Count())
}

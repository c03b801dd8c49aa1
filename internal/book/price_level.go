package book

import (
	"sort"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
)

// Level is a price and the size resting at it.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// PriceLevelMap keeps the levels of one book side sorted by ascending price.
// A level never holds a size <= 0; deleting removes the key.
type PriceLevelMap struct {
	side   schema.BookSide
	levels []Level
}

// NewPriceLevelMap creates an empty side. Best is the highest price for bids and
// the lowest for asks.
func NewPriceLevelMap(side schema.BookSide) *PriceLevelMap {
	return &PriceLevelMap{side: side, levels: make([]Level, 0, 32)}
}

// Side returns the book side this map represents.
func (m *PriceLevelMap) Side() schema.BookSide {
	return m.side
}

func (m *PriceLevelMap) search(price decimal.Decimal) (int, bool) {
	i := sort.Search(len(m.levels), func(i int) bool {
		return m.levels[i].Price.GreaterThanOrEqual(price)
	})
	return i, i < len(m.levels) && m.levels[i].Price.Equal(price)
}

// Upsert sets the size at price, inserting the level in price order when absent.
func (m *PriceLevelMap) Upsert(price, size decimal.Decimal) error {
	if !size.IsPositive() {
		return exception.ErrNonPositiveSize
	}
	i, found := m.search(price)
	if found {
		m.levels[i].Size = size
		return nil
	}
	m.levels = append(m.levels, Level{})
	copy(m.levels[i+1:], m.levels[i:])
	m.levels[i] = Level{Price: price, Size: size}
	return nil
}

// Remove deletes the level at price. An absent price leaves the map unchanged and
// returns ErrUnknownPriceOnDelete.
func (m *PriceLevelMap) Remove(price decimal.Decimal) error {
	i, found := m.search(price)
	if !found {
		return exception.ErrUnknownPriceOnDelete
	}
	m.levels = append(m.levels[:i], m.levels[i+1:]...)
	return nil
}

// Best returns the top of this side.
func (m *PriceLevelMap) Best() (Level, error) {
	if len(m.levels) == 0 {
		return Level{}, exception.ErrEmptyBookSide
	}
	if m.side == schema.BookSideBid {
		return m.levels[len(m.levels)-1], nil
	}
	return m.levels[0], nil
}

// Size returns the resting size at price.
func (m *PriceLevelMap) Size(price decimal.Decimal) (decimal.Decimal, bool) {
	i, found := m.search(price)
	if !found {
		return decimal.Zero, false
	}
	return m.levels[i].Size, true
}

// Len returns the number of levels.
func (m *PriceLevelMap) Len() int {
	return len(m.levels)
}

// Levels returns a copy of the levels in ascending price order.
func (m *PriceLevelMap) Levels() []Level {
	out := make([]Level, len(m.levels))
	copy(out, m.levels)
	return out
}

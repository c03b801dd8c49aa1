package book

import (
	"sync"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/shopspring/decimal"
)

// OrderBook is the bid and ask view of one instrument. It is owned by the
// instrument's lane and is not safe for concurrent mutation.
type OrderBook struct {
	instrument schema.Instrument
	bids       *PriceLevelMap
	asks       *PriceLevelMap
}

// NewOrderBook creates an empty book.
func NewOrderBook(instrument schema.Instrument) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       NewPriceLevelMap(schema.BookSideBid),
		asks:       NewPriceLevelMap(schema.BookSideAsk),
	}
}

func (b *OrderBook) Instrument() schema.Instrument {
	return b.instrument
}

// Side returns the level map for one side.
func (b *OrderBook) Side(side schema.BookSide) (*PriceLevelMap, error) {
	switch side {
	case schema.BookSideBid:
		return b.bids, nil
	case schema.BookSideAsk:
		return b.asks, nil
	default:
		return nil, exception.ErrUnknownBookSide
	}
}

// Apply is the only mutator: DELETE removes the level, any other action upserts it.
func (b *OrderBook) Apply(side schema.BookSide, action schema.BookAction, price, size decimal.Decimal) error {
	levels, err := b.Side(side)
	if err != nil {
		return err
	}
	if action == schema.BookActionDelete {
		return levels.Remove(price)
	}
	return levels.Upsert(price, size)
}

// BestBid returns the highest bid.
func (b *OrderBook) BestBid() (Level, error) {
	return b.bids.Best()
}

// BestAsk returns the lowest ask.
func (b *OrderBook) BestAsk() (Level, error) {
	return b.asks.Best()
}

// Best returns the top of the given side.
func (b *OrderBook) Best(side schema.BookSide) (Level, error) {
	levels, err := b.Side(side)
	if err != nil {
		return Level{}, err
	}
	return levels.Best()
}

// Books creates order books lazily on the first event for an instrument.
type Books struct {
	mu    sync.RWMutex
	books map[schema.Instrument]*OrderBook
}

func NewBooks() *Books {
	return &Books{books: make(map[schema.Instrument]*OrderBook)}
}

// Get returns the instrument's book, creating it when unseen.
func (bs *Books) Get(instrument schema.Instrument) *OrderBook {
	bs.mu.RLock()
	b, ok := bs.books[instrument]
	bs.mu.RUnlock()
	if ok {
		return b
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok = bs.books[instrument]; ok {
		return b
	}
	b = NewOrderBook(instrument)
	bs.books[instrument] = b
	return b
}

// Lookup returns the book without creating it.
func (bs *Books) Lookup(instrument schema.Instrument) (*OrderBook, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.books[instrument]
	return b, ok
}

// Len returns the number of books created so far.
func (bs *Books) Len() int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return len(bs.books)
}

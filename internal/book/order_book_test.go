package book

import (
	"sync"
	"testing"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookApply(t *testing.T) {
	b := NewOrderBook("X")

	require.NoError(t, b.Apply(schema.BookSideBid, schema.BookActionUpsert, d(100), d(10)))
	best, err := b.BestBid()
	require.NoError(t, err)
	assert.True(t, best.Price.Equal(d(100)))

	_, err = b.BestAsk()
	assert.ErrorIs(t, err, exception.ErrEmptyBookSide)

	require.NoError(t, b.Apply(schema.BookSideAsk, schema.BookActionUpsert, d(50), d(2)))
	require.NoError(t, b.Apply(schema.BookSideAsk, schema.BookActionDelete, d(50), d(0)))
	_, err = b.BestAsk()
	assert.ErrorIs(t, err, exception.ErrEmptyBookSide)

	assert.ErrorIs(t, b.Apply(schema.BookSideUnknown, schema.BookActionUpsert, d(1), d(1)), exception.ErrUnknownBookSide)
}

func TestOrderBookToleratesCrossedBook(t *testing.T) {
	b := NewOrderBook("X")
	require.NoError(t, b.Apply(schema.BookSideBid, schema.BookActionUpsert, d(105), d(1)))
	require.NoError(t, b.Apply(schema.BookSideAsk, schema.BookActionUpsert, d(100), d(1)))

	bid, err := b.BestBid()
	require.NoError(t, err)
	ask, err := b.BestAsk()
	require.NoError(t, err)
	assert.True(t, bid.Price.GreaterThan(ask.Price))
}

func TestBooksLazyCreate(t *testing.T) {
	bs := NewBooks()
	_, ok := bs.Lookup("X")
	assert.False(t, ok)

	var wg sync.WaitGroup
	got := make([]*OrderBook, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = bs.Get("X")
		}(i)
	}
	wg.Wait()

	for _, b := range got {
		assert.Same(t, got[0], b)
	}
	assert.Equal(t, 1, bs.Len())
	assert.Equal(t, schema.Instrument("X"), got[0].Instrument())
}

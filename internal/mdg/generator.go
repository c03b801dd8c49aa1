// Package mdg generates a synthetic, internally consistent order-book stream for
// paper sessions and tests. Every update it emits applies cleanly to a book
// that has seen the stream from the start.
package mdg

import (
	"math/rand"
	"time"

	"bookstrat/internal/book"
	"bookstrat/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Config shapes the stream.
type Config struct {
	Seed      int64
	BasePrice decimal.Decimal
	Tick      decimal.Decimal
	Depth     int
	MaxSize   int64
	// TradeEvery emits a trade print every N incremental updates per instrument. Zero disables.
	TradeEvery int
}

func (c Config) withDefaults() Config {
	if c.BasePrice.IsZero() {
		c.BasePrice = decimal.NewFromInt(100)
	}
	if c.Tick.IsZero() {
		c.Tick = decimal.NewFromInt(1)
	}
	if c.Depth <= 0 {
		c.Depth = 5
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UTC().UnixNano()
	}
	return c
}

type instrumentState struct {
	book    *book.OrderBook
	updates int
}

// Generator walks each instrument's book with random improvements, pulls and resizes.
type Generator struct {
	cfg         Config
	rng         *rand.Rand
	instruments []schema.Instrument
	states      map[schema.Instrument]*instrumentState
	index       int
	rejected    uint64
}

func NewGenerator(reg *schema.Registry, cfg Config) (*Generator, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.New("mdg: registry has no symbols")
	}
	cfg = cfg.withDefaults()
	if !cfg.BasePrice.IsPositive() || !cfg.Tick.IsPositive() {
		return nil, errors.Errorf("mdg: base price and tick must be > 0, got %s and %s", cfg.BasePrice, cfg.Tick)
	}
	if cfg.BasePrice.LessThanOrEqual(cfg.Tick.Mul(decimal.NewFromInt(int64(cfg.Depth)))) {
		return nil, errors.Errorf("mdg: base price %s too low for depth %d", cfg.BasePrice, cfg.Depth)
	}

	g := &Generator{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		instruments: reg.Instruments(),
		states:      make(map[schema.Instrument]*instrumentState, reg.Len()),
	}
	for _, inst := range g.instruments {
		g.states[inst] = &instrumentState{book: book.NewOrderBook(inst)}
	}
	return g, nil
}

// Snapshot returns the initial book of every instrument as SNAPSHOT updates.
func (g *Generator) Snapshot(now time.Time) []schema.Event {
	out := make([]schema.Event, 0, len(g.instruments)*g.cfg.Depth*2)
	for _, inst := range g.instruments {
		for k := 1; k <= g.cfg.Depth; k++ {
			offset := g.cfg.Tick.Mul(decimal.NewFromInt(int64(k)))
			out = append(out,
				g.apply(inst, now, schema.BookSideBid, schema.BookActionUpsert, g.cfg.BasePrice.Sub(offset), g.size(), schema.DataTypeSnapshot),
				g.apply(inst, now, schema.BookSideAsk, schema.BookActionUpsert, g.cfg.BasePrice.Add(offset), g.size(), schema.DataTypeSnapshot),
			)
		}
	}
	return out
}

// Next returns the next incremental update, round-robin across instruments,
// followed by a trade print when one is due.
func (g *Generator) Next(now time.Time) []schema.Event {
	inst := g.instruments[g.index]
	g.index = (g.index + 1) % len(g.instruments)
	st := g.states[inst]

	side := schema.BookSideBid
	if g.rng.Intn(2) == 1 {
		side = schema.BookSideAsk
	}
	out := []schema.Event{g.step(inst, st, side, now)}

	st.updates++
	if g.cfg.TradeEvery > 0 && st.updates%g.cfg.TradeEvery == 0 {
		if lvl, err := st.book.Best(side); err == nil {
			out = append(out, schema.TradePrint{
				Timestamp:  now.UnixNano(),
				Instrument: inst,
				Price:      lvl.Price,
				Size:       decimal.NewFromInt(1),
			})
		}
	}
	return out
}

func (g *Generator) step(inst schema.Instrument, st *instrumentState, side schema.BookSide, now time.Time) schema.Event {
	levels, _ := st.book.Side(side)
	if levels.Len() == 0 {
		price := g.cfg.BasePrice.Sub(g.cfg.Tick)
		if side == schema.BookSideAsk {
			price = g.cfg.BasePrice.Add(g.cfg.Tick)
		}
		return g.apply(inst, now, side, schema.BookActionUpsert, price, g.size(), schema.DataTypeIncremental)
	}
	best, _ := levels.Best()

	switch r := g.rng.Intn(3); {
	case r == 0 && levels.Len() > 1:
		return g.apply(inst, now, side, schema.BookActionDelete, best.Price, decimal.Zero, schema.DataTypeIncremental)
	case r == 1:
		if price, ok := g.improve(st, side, best.Price); ok {
			return g.apply(inst, now, side, schema.BookActionUpsert, price, g.size(), schema.DataTypeIncremental)
		}
	}

	all := levels.Levels()
	lvl := all[g.rng.Intn(len(all))]
	return g.apply(inst, now, side, schema.BookActionUpsert, lvl.Price, g.size(), schema.DataTypeIncremental)
}

// Rejected counts updates the generator's own book refused. Any nonzero value
// means the emitted stream no longer applies cleanly.
func (g *Generator) Rejected() uint64 {
	return g.rejected
}

// improve returns a price one tick inside the best that does not cross the other side.
func (g *Generator) improve(st *instrumentState, side schema.BookSide, best decimal.Decimal) (decimal.Decimal, bool) {
	if side == schema.BookSideBid {
		price := best.Add(g.cfg.Tick)
		ask, err := st.book.BestAsk()
		return price, err != nil || price.LessThan(ask.Price)
	}
	price := best.Sub(g.cfg.Tick)
	bid, err := st.book.BestBid()
	return price, price.IsPositive() && (err != nil || price.GreaterThan(bid.Price))
}

func (g *Generator) apply(inst schema.Instrument, now time.Time, side schema.BookSide, action schema.BookAction, price, size decimal.Decimal, dataType schema.DataType) schema.BookUpdate {
	if err := g.states[inst].book.Apply(side, action, price, size); err != nil {
		g.rejected++
		logs.Warnf("mdg: own book rejected %s %s %s@%s for %s, err: %+v", side, action, size, price, inst, err)
	}
	return schema.BookUpdate{
		Timestamp:  now.UnixNano(),
		Instrument: inst,
		Status:     "OK",
		Price:      price,
		Size:       size,
		Action:     action,
		Side:       side,
		DataType:   dataType,
	}
}

func (g *Generator) size() decimal.Decimal {
	return decimal.NewFromInt(1 + g.rng.Int63n(g.cfg.MaxSize))
}

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"bookstrat/internal/mdg"
	"bookstrat/internal/obs"
	"bookstrat/internal/ops"
	"bookstrat/internal/recorder"
	"bookstrat/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

func main() {
	journalDir := flag.String("journal-dir", "testdata/journal", "Journal directory for the generated stream")
	configPath := flag.String("config", "", "Path to trader config (universe)")
	updates := flag.Int("updates", 1000, "Number of incremental updates to generate")
	interval := flag.Duration("interval", 0, "Delay between updates")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	basePrice := flag.String("base-price", "100", "Starting mid price")
	tick := flag.String("tick", "1", "Price increment")
	depth := flag.Int("depth", 5, "Initial levels per side")
	tradeEvery := flag.Int("trade-every", 10, "Emit a trade every N updates per instrument (0=disable)")
	flag.Parse()

	if *updates <= 0 {
		log.Fatalf("updates must be > 0")
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if loaded.Registry.Len() == 0 {
		log.Fatalf("config has an empty universe")
	}

	base, err := decimal.NewFromString(*basePrice)
	if err != nil {
		log.Fatalf("invalid base price: %v", err)
	}
	step, err := decimal.NewFromString(*tick)
	if err != nil {
		log.Fatalf("invalid tick: %v", err)
	}

	generator, err := mdg.NewGenerator(loaded.Registry, mdg.Config{
		Seed:       *seed,
		BasePrice:  base,
		Tick:       step,
		Depth:      *depth,
		TradeEvery: *tradeEvery,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	ctx := context.Background()
	journal, err := recorder.OpenJournal(ctx, recorder.DefaultConfig(*journalDir))
	if err != nil {
		log.Fatalf("journal open failed: %v", err)
	}

	metrics := obs.NewMetrics()
	record := func(evts []schema.Event) {
		for _, evt := range evts {
			if err := journal.Record(schema.SourceFeed, evt); err != nil {
				metrics.IncQueueDrop()
				logs.Warnf("record %s, err: %+v", evt.Kind(), err)
				continue
			}
			metrics.ObserveEvent(evt.Kind())
		}
	}

	record(generator.Snapshot(time.Now().UTC()))
	for i := 0; i < *updates; i++ {
		record(generator.Next(time.Now().UTC()))
		if *interval > 0 && i < *updates-1 {
			time.Sleep(*interval)
		}
	}

	if err := journal.Close(); err != nil {
		log.Fatalf("journal close failed: %v", err)
	}

	snap := metrics.Snapshot()
	logs.Infof("mdg completed: records=%d book_updates=%d trades=%d dropped=%d",
		journal.Seq(), snap.EventCounts[schema.EventBookUpdate], snap.EventCounts[schema.EventTradePrint], snap.QueueDrops)
}

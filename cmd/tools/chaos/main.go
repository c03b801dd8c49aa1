package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"bookstrat/internal/chaos"
	"bookstrat/internal/recorder"
	"bookstrat/internal/schema"
)

func main() {
	inputDir := flag.String("input-dir", "testdata/journal", "Input journal directory")
	inputPrefix := flag.String("input-prefix", "", "Input journal file prefix (default: journal)")
	outputDir := flag.String("output-dir", "testdata/journal_chaos", "Output journal directory")
	outputPrefix := flag.String("output-prefix", "chaos", "Output journal file prefix")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	maxDelay := flag.Duration("max-delay", 0, "Max receive delay")
	kinds := flag.String("kinds", "", "Comma separated record types to perturb, e.g. fill,book_update (empty=all)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	flag.Parse()

	targets, err := parseKinds(*kinds)
	if err != nil {
		log.Fatalf("kinds invalid: %v", err)
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          *inputDir,
		Prefix:       *inputPrefix,
		SkipChecksum: *noChecksum,
		MaxPayload:   *maxPayload,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	engine, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
		MaxDelay:      *maxDelay,
		Kinds:         targets,
	})
	if err != nil {
		log.Fatalf("chaos config invalid: %v", err)
	}

	ctx := context.Background()
	outCfg := recorder.DefaultConfig(*outputDir)
	outCfg.Prefix = *outputPrefix
	journal, err := recorder.OpenJournal(ctx, outCfg)
	if err != nil {
		log.Fatalf("journal open failed: %v", err)
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		for _, out := range engine.Process(chaos.Record{Header: header, Payload: payload}) {
			if err := journal.Append(out.Header, out.Payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("playback failed: %v", err)
	}
	for _, out := range engine.Flush() {
		if err := journal.Append(out.Header, out.Payload); err != nil {
			log.Fatalf("append failed: %v", err)
		}
	}
	if err := journal.Close(); err != nil {
		log.Fatalf("journal close failed: %v", err)
	}

	stats := engine.Stats()
	fmt.Printf("chaos completed: in=%d out=%d dropped=%d duplicated=%d delayed=%d\n",
		stats.In, stats.Out, stats.Dropped, stats.Duplicated, stats.Delayed)
}

func parseKinds(raw string) ([]schema.EventType, error) {
	if raw == "" {
		return nil, nil
	}
	var out []schema.EventType
	for _, name := range strings.Split(raw, ",") {
		t := schema.ParseEventType(strings.TrimSpace(name))
		if t == schema.EventUnknown {
			return nil, fmt.Errorf("unknown record type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

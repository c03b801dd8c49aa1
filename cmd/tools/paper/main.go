package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"bookstrat/internal/ops"
	"bookstrat/internal/recorder"
	"bookstrat/internal/replay"
	"bookstrat/internal/schema"
)

func main() {
	inputDir := flag.String("input-dir", "testdata/journal", "Input journal directory")
	inputPrefix := flag.String("input-prefix", "", "Input journal file prefix (default: journal)")
	outputDir := flag.String("output-dir", "testdata/journal_paper", "Output journal directory (empty=disable)")
	outputPrefix := flag.String("output-prefix", "paper", "Output journal file prefix")
	configPath := flag.String("config", "", "Path to trader config for risk, signal and paper venue settings")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	cfg := replay.Config{
		Playback: recorder.PlaybackConfig{
			Dir:          *inputDir,
			Prefix:       *inputPrefix,
			SkipChecksum: *noChecksum,
			MaxPayload:   *maxPayload,
		},
		Mode:   replay.ModePaper,
		Risk:   loaded.Risk,
		Signal: loaded.Signal,
		Paper:  loaded.Venue.Paper,
	}
	if *outputDir != "" {
		out := recorder.DefaultConfig(*outputDir)
		out.Prefix = *outputPrefix
		cfg.Output = &out
	}

	report, err := replay.Run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("paper failed: %v", err)
	}

	fmt.Printf("paper completed: records=%d market_data=%d intents=%d fills=%d halted=%t\n",
		report.Records, report.Applied, len(report.Intents), report.Metrics.EventCounts[schema.EventFill], report.Halted)
	for _, p := range report.Positions.Positions {
		fmt.Printf("  position symbol=%s qty=%s\n", p.Instrument, p.Qty)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"bookstrat/internal/ops"
	"bookstrat/internal/recorder"
	"bookstrat/internal/replay"
)

func main() {
	dir := flag.String("dir", "testdata/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: journal)")
	configPath := flag.String("config", "", "Path to trader config for risk and signal settings")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	stopOnHalt := flag.Bool("stop-on-halt", false, "Stop at the first risk shutdown")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	report, err := replay.Run(context.Background(), replay.Config{
		Playback: recorder.PlaybackConfig{
			Dir:          *dir,
			Prefix:       *prefix,
			Speed:        *speed,
			UseRecvTime:  *useRecv,
			SkipChecksum: *noChecksum,
			MaxPayload:   *maxPayload,
		},
		Mode:       replay.ModeReplay,
		Risk:       loaded.Risk,
		Signal:     loaded.Signal,
		StopOnHalt: *stopOnHalt,
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	printReport(report)
	if uint64(len(report.Intents)) != report.RecordedIntents {
		fmt.Printf("WARNING: replay emitted %d intents, journal recorded %d\n", len(report.Intents), report.RecordedIntents)
	}
}

func printReport(r replay.Report) {
	fmt.Printf("mode=%s records=%d applied=%d skipped=%d failed=%d\n", r.Mode, r.Records, r.Applied, r.Skipped, r.Failed)
	fmt.Printf("intents=%d recorded_intents=%d halted=%t shutdowns=%d\n", len(r.Intents), r.RecordedIntents, r.Halted, r.Metrics.Shutdowns)
	if r.TornTail {
		fmt.Println("journal ends in a torn record; the run stopped before it")
	}
	for _, in := range r.Intents {
		fmt.Printf("  intent req=%d symbol=%s side=%s price=%s size=%s\n", in.RequestID, in.Instrument, in.Side, in.Price, in.Size)
	}
	for _, p := range r.Positions.Positions {
		fmt.Printf("  position symbol=%s qty=%s\n", p.Instrument, p.Qty)
	}
	for a, n := range r.Metrics.AnomalyCounts {
		fmt.Printf("  anomaly %s=%d\n", a, n)
	}
}

// Package replay runs a recorded journal through a fresh engine on one goroutine.
//
// ModeReplay re-applies every recorded event, including the venue's order reports,
// and collects the intents the engine would have sent. ModePaper re-applies only
// market data and lets the paper venue answer each intent, which turns a recorded
// session into a backtest of the current strategy.
package replay

import (
	"context"

	"bookstrat/internal/book"
	"bookstrat/internal/codec"
	"bookstrat/internal/core"
	"bookstrat/internal/obs"
	"bookstrat/internal/recorder"
	"bookstrat/internal/risk"
	"bookstrat/internal/schema"
	"bookstrat/internal/signal"
	"bookstrat/internal/state"
	"bookstrat/internal/venue"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

type Mode uint8

const (
	ModeReplay Mode = iota
	ModePaper
)

func (m Mode) String() string {
	if m == ModePaper {
		return "paper"
	}
	return "replay"
}

// Config describes one run.
type Config struct {
	Playback recorder.PlaybackConfig
	Mode     Mode
	Risk     risk.Config
	Signal   signal.Config
	Paper    venue.PaperConfig
	// Output journals the run itself when set.
	Output *recorder.Config
	// StopOnHalt ends the run at the first risk shutdown.
	StopOnHalt bool
}

// Report summarizes a run.
type Report struct {
	Mode            Mode
	Records         uint64
	Applied         uint64
	Skipped         uint64
	Failed          uint64
	RecordedIntents uint64
	Intents         []schema.OrderIntent
	Positions       state.Snapshot
	Halted          bool
	// TornTail reports a partially written last record, left by a crash while recording.
	TornTail bool
	Metrics  obs.Snapshot
}

var errHalted = errors.New("replay: risk halted")

// Run plays the journal to the end, or until ctx ends or risk halts with StopOnHalt.
func Run(ctx context.Context, cfg Config) (Report, error) {
	pb, err := recorder.NewPlayback(cfg.Playback)
	if err != nil {
		return Report{}, errors.Wrap(err, "new playback")
	}

	var sinks core.Sinks
	if cfg.Output != nil {
		journal, err := recorder.OpenJournal(ctx, *cfg.Output)
		if err != nil {
			return Report{}, errors.Wrap(err, "open output journal")
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	metrics := obs.NewMetrics()
	life := core.NewLifecycle()
	positions := state.NewPositionTracker()
	riskCtl := risk.NewController(cfg.Risk, life, metrics)
	recording := venue.NewRecording()

	var v venue.Venue = recording
	var paper *venue.Paper
	if cfg.Mode == ModePaper {
		paper = venue.NewPaper(cfg.Paper)
		v = fanout{recording, paper}
	}

	engine, err := core.NewEngine(core.Deps{
		Books:     book.NewBooks(),
		Signal:    signal.NewEngine(cfg.Signal, signal.NewSequencer(), riskCtl),
		Positions: positions,
		Risk:      riskCtl,
		Venue:     v,
		Sink:      sinks,
		Metrics:   metrics,
	})
	if err != nil {
		return Report{}, err
	}
	if paper != nil {
		paper.Attach(inline{engine: engine})
	}

	report := Report{Mode: cfg.Mode}
	stopped := false
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		report.Records++
		if header.Type == schema.EventOrderIntent {
			report.RecordedIntents++
			return nil
		}
		if cfg.Mode == ModePaper && !marketData(header.Type) {
			report.Skipped++
			return nil
		}

		evt, err := codec.DecodeEvent(header.Type, payload)
		if err != nil {
			report.Failed++
			logs.Warnf("replay: decode seq %d, type: %s, err: %+v", header.Seq, header.Type, err)
			return nil
		}
		if err := engine.Handle(schema.SourceReplay, evt); err != nil {
			report.Failed++
			logs.Warnf("replay: handle seq %d, type: %s, err: %+v", header.Seq, header.Type, err)
		}
		report.Applied++

		if cfg.StopOnHalt && riskCtl.Halted() {
			stopped = true
			return errHalted
		}
		return nil
	})
	if err != nil && !stopped {
		return Report{}, errors.Wrap(err, "playback")
	}

	report.Intents = recording.Intents()
	report.Positions = positions.Snapshot()
	report.Halted = riskCtl.Halted()
	report.TornTail = pb.Stats().TornTail
	report.Metrics = metrics.Snapshot()
	return report, nil
}

func marketData(t schema.EventType) bool {
	switch t {
	case schema.EventStateUpdate, schema.EventParameterUpdate, schema.EventTradePrint,
		schema.EventBar, schema.EventBookUpdate, schema.EventInstrumentStatus:
		return true
	default:
		return false
	}
}

// inline hands venue reports straight back to the engine.
type inline struct {
	engine *core.Engine
}

func (i inline) Dispatch(evt schema.Event) error {
	return i.engine.Handle(schema.SourceVenue, evt)
}

type fanout []venue.Venue

func (f fanout) PlaceOrder(intent schema.OrderIntent) error {
	for _, v := range f {
		if err := v.PlaceOrder(intent); err != nil {
			return err
		}
	}
	return nil
}

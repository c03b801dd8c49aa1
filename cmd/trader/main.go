package main

import (
	"context"
	"flag"
	"log"

	"bookstrat/internal/audit"
	"bookstrat/internal/book"
	"bookstrat/internal/core"
	"bookstrat/internal/ingest"
	"bookstrat/internal/obs"
	"bookstrat/internal/ops"
	"bookstrat/internal/recorder"
	"bookstrat/internal/risk"
	"bookstrat/internal/signal"
	"bookstrat/internal/state"
	"bookstrat/internal/venue"
	"bookstrat/pkg/conn"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML/JSON config (env BOOKSTRAT_* overrides)")
	paper := flag.Bool("paper", false, "Force the in-process paper venue")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *paper {
		loaded.Venue.Kind = ops.VenuePaper
	}

	if err := run(context.Background(), loaded); err != nil {
		log.Fatalf("trader failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopProfiler, err := startProfiler(loaded.Profiling)
	if err != nil {
		return err
	}
	defer stopProfiler()

	metrics := obs.NewMetrics()
	life := core.NewLifecycle()
	positions := state.NewPositionTracker()

	var snapshots *state.SnapshotStore
	if loaded.Snapshot.Dir != "" {
		snapshots, err = state.OpenSnapshotStore(loaded.Snapshot.Dir)
		if err != nil {
			return errors.Wrap(err, "open snapshot store")
		}
		defer snapshots.Close()

		snap, err := snapshots.Load()
		if err != nil {
			return errors.Wrap(err, "load positions")
		}
		if loaded.JournalEnabled() {
			res, err := state.Recover(ctx, positions, snap, recorder.PlaybackConfig{
				Dir:    loaded.Journal.Dir,
				Prefix: loaded.Journal.Prefix,
			})
			if err != nil {
				logs.Warnf("recover positions from journal, err: %+v", err)
			}
			logs.Infof("positions recovered, fills: %d, snapshots: %d, skipped: %d", res.Fills, res.Snapshots, res.Skipped)
		} else {
			positions.ApplySnapshot(snap)
		}
		logs.Infof("positions restored, count: %d", positions.Count())
	}

	var sinks core.Sinks
	if loaded.JournalEnabled() {
		journal, err := recorder.OpenJournal(ctx, loaded.Journal)
		if err != nil {
			return errors.Wrap(err, "open journal")
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logs.Errorf("close journal, err: %+v", err)
			}
			st := journal.Stats()
			logs.Infof("journal closed, written: %d, dropped: %d, segments: %d", st.Written, st.Dropped, st.Segments)
		}()
		sinks = append(sinks, journal)
	}
	if loaded.Audit.Enabled() {
		client, err := conn.New(loaded.Audit.DB)
		if err != nil {
			return errors.Wrap(err, "connect audit database")
		}
		defer client.Close()

		store, err := audit.NewStore(client.DB(), loaded.Audit.Batch)
		if err != nil {
			return errors.Wrap(err, "open audit store")
		}
		defer store.Close()
		sinks = append(sinks, store)
		logs.Infof("audit run id: %s", store.RunID())
	}

	v, paperVenue, closeVenue, err := newVenue(loaded.Venue)
	if err != nil {
		return err
	}
	defer closeVenue()

	riskCtl := risk.NewController(loaded.Risk, life, metrics)
	engine, err := core.NewEngine(core.Deps{
		Books:     book.NewBooks(),
		Signal:    signal.NewEngine(loaded.Signal, signal.NewSequencer(), riskCtl),
		Positions: positions,
		Risk:      riskCtl,
		Venue:     v,
		Sink:      sinks,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	dispatcher, err := core.NewDispatcher(loaded.Dispatch, engine, metrics)
	if err != nil {
		return err
	}
	dispatcher.WithGuard(riskCtl)
	if paperVenue != nil {
		paperVenue.Attach(dispatcher)
	}
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}

	closers := []core.Closer{}
	if loaded.Feed.URL != "" {
		feed, err := ingest.NewFeed(ctx, loaded.Feed.URL, loaded.Registry, dispatcher)
		if err != nil {
			return err
		}
		if err := feed.Start(ctx); err != nil {
			return err
		}
		unsubscribe := feed.Observe(ctx)
		defer unsubscribe()
		if err := feed.Bootstrap(ctx); err != nil {
			feed.Close()
			return err
		}
		closers = append(closers, feed)
	} else {
		logs.Warnf("no feed url configured, waiting for shutdown")
	}
	closers = append(closers, dispatcher)

	logs.Infof("trader running, universe: %v, venue: %s, position limit: %s",
		loaded.Registry.Instruments(), loaded.Venue.Kind, riskCtl.Limit())
	life.Run(ctx, closers...)

	if snapshots != nil {
		if err := snapshots.Save(positions.Snapshot()); err != nil {
			logs.Errorf("save positions, err: %+v", err)
		}
	}
	logs.Infof("trader stopped, risk state: %s, metrics: %+v", riskCtl.State(), metrics.Snapshot())

	return nil
}

func newVenue(cfg ops.VenueConfig) (venue.Venue, *venue.Paper, func(), error) {
	switch cfg.Kind {
	case ops.VenueKafka:
		k, err := venue.NewKafka(cfg.Kafka)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "new kafka venue")
		}
		return k, nil, func() {
			if err := k.Close(); err != nil {
				logs.Errorf("close kafka venue, err: %+v", err)
			}
		}, nil
	default:
		p := venue.NewPaper(cfg.Paper)
		return p, p, func() { _ = p.Close() }, nil
	}
}

func startProfiler(cfg ops.ProfilingConfig) (func(), error) {
	if cfg.Address == "" {
		return func() {}, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.Address,
		Tags: map[string]string{
			"binary": "trader",
		},
		Logger: pyroscopeLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}

	return func() {
		_ = profiler.Stop()
	}, nil
}

type pyroscopeLogger struct{}

func (pyroscopeLogger) Infof(format string, args ...any)  { logs.Infof(format, args...) }
func (pyroscopeLogger) Debugf(string, ...any)             {}
func (pyroscopeLogger) Errorf(format string, args ...any) { logs.Errorf(format, args...) }

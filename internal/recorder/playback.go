package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	stderrors "errors"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// PlaybackConfig selects a journal and how fast to play it. Speed 0 plays as fast as
// possible; 1 reproduces the recorded gaps between event timestamps.
type PlaybackConfig struct {
	Dir          string
	Prefix       string
	Speed        float64
	UseRecvTime  bool
	SkipChecksum bool
	MaxPayload   int
}

func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "":
		return errors.New("playback config: dir is empty")
	case c.Speed < 0:
		return errors.New("playback config: speed must be >= 0")
	case c.MaxPayload < 0:
		return errors.New("playback config: maxPayload must be >= 0")
	}
	return nil
}

// Sleeper paces playback. Tests swap in one that records instead of sleeping.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PlaybackStats summarizes one Run.
type PlaybackStats struct {
	Segments int
	Records  uint64
	// TornTail is set when the last segment ended in a partially written record.
	TornTail bool
}

// Playback reads every segment of a journal in name order, which is write order.
type Playback struct {
	cfg     PlaybackConfig
	sleeper Sleeper
	last    int64
	stats   PlaybackStats
}

func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, sleeper: wallClock{}}, nil
}

func (p *Playback) WithSleeper(s Sleeper) *Playback {
	if s != nil {
		p.sleeper = s
	}
	return p
}

func (p *Playback) Stats() PlaybackStats {
	return p.stats
}

// Run calls handler for each record. A handler error stops playback and is returned as is.
// A torn record is tolerated only at the end of the last segment.
func (p *Playback) Run(ctx context.Context, handler func(schema.EventHeader, []byte) error) error {
	if handler == nil {
		return exception.ErrNilInstance
	}
	paths, err := p.segments()
	if err != nil {
		return err
	}

	p.last, p.stats = 0, PlaybackStats{}
	for i, path := range paths {
		err := p.play(ctx, path, handler)
		if stderrors.Is(err, exception.ErrJournalTornRecord) && i == len(paths)-1 {
			p.stats.TornTail = true
			logs.Warnf("journal: torn record at the end of %s, playback stops there", path)
			return nil
		}
		if err != nil {
			return err
		}
		p.stats.Segments++
	}
	return nil
}

func (p *Playback) segments() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read journal dir %s", p.cfg.Dir)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, p.cfg.Prefix+"-") || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		paths = append(paths, filepath.Join(p.cfg.Dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

func (p *Playback) play(ctx context.Context, path string, handler func(schema.EventHeader, []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open segment %s", path)
	}
	defer f.Close()

	r := NewReader(f, p.cfg.SkipChecksum, p.cfg.MaxPayload)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, payload, err := r.Next()
		switch {
		case err == io.EOF:
			return nil
		case stderrors.Is(err, exception.ErrJournalTornRecord):
			return err
		case err != nil:
			return errors.Wrapf(err, "%s at offset %d", path, r.Offset())
		}

		if err := p.pace(ctx, header); err != nil {
			return err
		}
		p.stats.Records++
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, h schema.EventHeader) error {
	ts := h.TsEvent
	if p.cfg.UseRecvTime {
		ts = h.TsRecv
	}
	if p.cfg.Speed <= 0 || ts <= 0 {
		return nil
	}
	prev := p.last
	p.last = ts
	if prev <= 0 || ts <= prev {
		return nil
	}
	return p.sleeper.Sleep(ctx, time.Duration(float64(ts-prev)/p.cfg.Speed))
}

package recorder

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, cfg Config, n int) *Writer {
	t.Helper()
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for i := 1; i <= n; i++ {
		h := schema.NewHeader(schema.EventStateUpdate, schema.SourceFeed, uint64(i), int64(i)*int64(time.Millisecond), 0)
		require.NoError(t, w.TryAppend(h, []byte(`{"state":"RUNNING"}`)))
	}
	require.NoError(t, w.Close())
	return w
}

func segmentsIn(t *testing.T, dir string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "journal-*"+segmentExt))
	require.NoError(t, err)
	return paths
}

func collect(t *testing.T, pb *Playback) ([]uint64, error) {
	t.Helper()
	var seqs []uint64
	err := pb.Run(context.Background(), func(h schema.EventHeader, _ []byte) error {
		seqs = append(seqs, h.Seq)
		return nil
	})
	return seqs, err
}

func TestWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MaxSegmentBytes = 3 * int64(recordOverhead+len(`{"state":"RUNNING"}`))

	w := writeRecords(t, cfg, 7)
	st := w.Stats()
	assert.Equal(t, uint64(7), st.Written)
	assert.Zero(t, st.Dropped)
	assert.Equal(t, uint64(3), st.Segments)
	assert.Len(t, segmentsIn(t, dir), 3)

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	seqs, err := collect(t, pb)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, seqs)
	assert.Equal(t, 3, pb.Stats().Segments)
}

func TestWriterLifecycleErrors(t *testing.T) {
	w, err := NewWriter(DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	assert.ErrorIs(t, w.TryAppend(schema.EventHeader{}, nil), exception.ErrJournalNotStarted)
	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), exception.ErrJournalAlreadyStarted)
	assert.ErrorIs(t, w.TryAppend(schema.EventHeader{}, make([]byte, maxPayload+1)), exception.ErrJournalPayloadTooLarge)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.TryAppend(schema.EventHeader{}, nil), exception.ErrJournalClosed)
	assert.Equal(t, uint64(1), w.Stats().Dropped)
}

func TestPlaybackToleratesTornTail(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, DefaultConfig(dir), 3)

	paths := segmentsIn(t, dir)
	require.Len(t, paths, 1)
	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	require.NoError(t, os.Truncate(paths[0], info.Size()-5))

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	seqs, err := collect(t, pb)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.True(t, pb.Stats().TornTail)
}

func TestPlaybackRejectsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, DefaultConfig(dir), 2)

	paths := segmentsIn(t, dir)
	require.Len(t, paths, 1)
	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	idx := bytes.Index(raw, []byte("RUNNING"))
	require.Positive(t, idx)
	raw[idx] = 'X'
	require.NoError(t, os.WriteFile(paths[0], raw, 0o644))

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	seqs, err := collect(t, pb)
	assert.Error(t, err)
	assert.Empty(t, seqs)

	pb, err = NewPlayback(PlaybackConfig{Dir: dir, SkipChecksum: true})
	require.NoError(t, err)
	seqs, err = collect(t, pb)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestReaderErrors(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xAB}, headerSize)
	_, _, err := NewReader(bytes.NewReader(garbage), false, 0).Next()
	assert.ErrorIs(t, err, exception.ErrJournalBadMagic)

	_, _, err = NewReader(bytes.NewReader(nil), false, 0).Next()
	assert.Equal(t, io.EOF, err)

	_, _, err = NewReader(bytes.NewReader(magic[:]), false, 0).Next()
	assert.ErrorIs(t, err, exception.ErrJournalTornRecord)

	header := putHeader(nil, schema.NewHeader(schema.EventFill, schema.SourceVenue, 1, 0, 0), 16)
	_, _, err = NewReader(bytes.NewReader(header), false, 8).Next()
	assert.ErrorIs(t, err, exception.ErrJournalPayloadTooLarge)
}

type recordingSleeper struct {
	naps []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.naps = append(s.naps, d)
	return nil
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, DefaultConfig(dir), 3)

	sleeper := &recordingSleeper{}
	pb, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)
	seqs, err := collect(t, pb.WithSleeper(sleeper))
	require.NoError(t, err)
	assert.Len(t, seqs, 3)
	assert.Equal(t, []time.Duration{500 * time.Microsecond, 500 * time.Microsecond}, sleeper.naps)
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
	}{
		{desc: "empty dir", mutate: func(c *Config) { c.Dir = "" }},
		{desc: "tiny segment", mutate: func(c *Config) { c.MaxSegmentBytes = recordOverhead }},
		{desc: "negative age", mutate: func(c *Config) { c.MaxSegmentAge = -time.Second }},
		{desc: "negative flush", mutate: func(c *Config) { c.FlushEvery = -time.Second }},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := DefaultConfig("x")
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	_, err := NewPlayback(PlaybackConfig{Dir: "x", Speed: -1})
	assert.Error(t, err)
}

package recorder

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultMaxSegmentBytes int64 = 256 << 20
	defaultMaxSegmentAge         = 15 * time.Minute
	defaultQueueSize             = 8192
	defaultBufferSize            = 64 << 10
	defaultPrefix                = "journal"
)

// Config controls where and how the journal is written. An empty Dir disables journaling.
type Config struct {
	Dir             string        `mapstructure:"dir"`
	Prefix          string        `mapstructure:"prefix"`
	MaxSegmentBytes int64         `mapstructure:"maxSegmentBytes"`
	MaxSegmentAge   time.Duration `mapstructure:"maxSegmentAge"`
	QueueSize       int           `mapstructure:"queueSize"`
	BufferSize      int           `mapstructure:"bufferSize"`
	// FlushEvery and SyncEvery are optional periodic flush and fsync intervals.
	FlushEvery time.Duration `mapstructure:"flushEvery"`
	SyncEvery  time.Duration `mapstructure:"syncEvery"`
}

// DefaultConfig returns the journal settings used by the trader for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:             dir,
		Prefix:          defaultPrefix,
		MaxSegmentBytes: defaultMaxSegmentBytes,
		MaxSegmentAge:   defaultMaxSegmentAge,
		QueueSize:       defaultQueueSize,
		BufferSize:      defaultBufferSize,
		FlushEvery:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.MaxSegmentBytes == 0 {
		c.MaxSegmentBytes = defaultMaxSegmentBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.New("journal config: dir is empty")
	case c.Prefix == "":
		return errors.New("journal config: prefix is empty")
	case c.MaxSegmentBytes <= recordOverhead:
		return errors.Errorf("journal config: maxSegmentBytes must exceed %d, got %d", recordOverhead, c.MaxSegmentBytes)
	case c.MaxSegmentAge < 0:
		return errors.New("journal config: maxSegmentAge must be >= 0")
	case c.QueueSize <= 0:
		return errors.New("journal config: queueSize must be > 0")
	case c.BufferSize <= 0:
		return errors.New("journal config: bufferSize must be > 0")
	case c.FlushEvery < 0 || c.SyncEvery < 0:
		return errors.New("journal config: flushEvery and syncEvery must be >= 0")
	}
	return nil
}

package recorder

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultSegmentMaxAge         = 5 * time.Minute
	defaultQueueSize             = 8192
	defaultBufferSize            = 256 * 1024
	defaultFilePrefix            = "hft"
	defaultFlushInterval         = 200 * time.Millisecond
	defaultSyncInterval          = 2 * time.Second
)

// Config controls the WAL writer.
type Config struct {
	Dir             string
	FilePrefix      string
	SegmentMaxBytes int64
	SegmentMaxAge   time.Duration
	QueueSize       int
	BufferSize      int
	FlushInterval   time.Duration
	SyncInterval    time.Duration
}

// DefaultConfig returns the writer settings used by the engine.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:             dir,
		FilePrefix:      defaultFilePrefix,
		SegmentMaxBytes: defaultSegmentMaxBytes,
		SegmentMaxAge:   defaultSegmentMaxAge,
		QueueSize:       defaultQueueSize,
		BufferSize:      defaultBufferSize,
		FlushInterval:   defaultFlushInterval,
		SyncInterval:    defaultSyncInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
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
		return errors.New("recorder: dir is empty")
	case c.SegmentMaxBytes <= 0:
		return errors.New("recorder: segment max bytes must be > 0")
	case c.QueueSize <= 0:
		return errors.New("recorder: queue size must be > 0")
	case c.BufferSize <= 0:
		return errors.New("recorder: buffer size must be > 0")
	case c.FlushInterval < 0, c.SyncInterval < 0, c.SegmentMaxAge < 0:
		return errors.New("recorder: intervals must be >= 0")
	}
	return nil
}

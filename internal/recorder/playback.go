package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"hft/internal/schema"
)

// Handler receives each replayed record. The payload must not be retained.
type Handler func(header schema.EventHeader, payload []byte) error

// PlaybackConfig controls WAL playback.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Speed scales event-time gaps; 0 replays as fast as possible.
	Speed       float64
	UseRecvTime bool
	SkipVerify  bool
}

// Clock allows deterministic pacing in tests.
type Clock interface {
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

// Playback replays WAL segments in file name order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	if cfg.Dir == "" {
		return nil, errors.New("playback: dir is empty")
	}
	if cfg.Speed < 0 {
		return nil, errors.New("playback: speed must be >= 0")
	}
	return &Playback{cfg: cfg, clock: wallClock{}}, nil
}

// WithClock swaps the pacing clock.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Files lists the segment files that Run will replay.
func (p *Playback) Files() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".wal") {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// Run replays every record and stops at the first handler error.
func (p *Playback) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("playback: handler is nil")
	}
	files, err := p.Files()
	if err != nil {
		return err
	}
	var prev int64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prev); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler Handler, prev *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, !p.cfg.SkipVerify)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, payload, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read segment").With("path", path)
		}
		if err := p.pace(ctx, header, prev); err != nil {
			return err
		}
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, header schema.EventHeader, prev *int64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := header.TsEvent
	if p.cfg.UseRecvTime {
		current = header.TsRecv
	}
	if current <= 0 {
		return nil
	}
	if *prev > 0 && current > *prev {
		if err := p.clock.Sleep(ctx, time.Duration(float64(current-*prev)/p.cfg.Speed)); err != nil {
			return err
		}
	}
	*prev = current
	return nil
}

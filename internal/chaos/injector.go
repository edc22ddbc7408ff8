// Package chaos injects feed faults into recorded WAL events: drops,
// duplicates, reordering and receive delays. Backtests over the result show
// how the engine behaves on a degraded venue stream.
package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"hft/internal/schema"
	"hft/pkg/exception"
)

// Event is one WAL record.
type Event struct {
	Header  schema.EventHeader
	Payload []byte
}

type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	// ReorderWindow events are buffered and released in random order.
	ReorderWindow int
	MaxDelay      time.Duration
	// Types restricts faults to these event types; other events pass through
	// untouched and in order. Empty means every type.
	Types []schema.EventType
}

func (c Config) Validate() error {
	switch {
	case c.DropRate < 0 || c.DropRate > 1:
		return errors.Wrap(exception.ErrConfig, "drop rate must be in [0, 1]").With("drop_rate", c.DropRate)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return errors.Wrap(exception.ErrConfig, "duplicate rate must be in [0, 1]").With("duplicate_rate", c.DuplicateRate)
	case c.ReorderWindow <= 0:
		return errors.Wrap(exception.ErrConfig, "reorder window must be >= 1").With("reorder_window", c.ReorderWindow)
	case c.MaxDelay < 0:
		return errors.Wrap(exception.ErrConfig, "max delay must be >= 0").With("max_delay", c.MaxDelay)
	}
	return nil
}

// Stats counts what the injector did.
type Stats struct {
	In         int
	Out        int
	Dropped    int
	Duplicated int
	Delayed    int
}

type Injector struct {
	cfg     Config
	rng     *rand.Rand
	types   map[schema.EventType]struct{}
	pending []Event
	stats   Stats
}

func NewInjector(cfg Config) (*Injector, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}

	var types map[schema.EventType]struct{}
	if len(cfg.Types) != 0 {
		types = make(map[schema.EventType]struct{}, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = struct{}{}
		}
	}
	return &Injector{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		types: types,
	}, nil
}

func (in *Injector) Stats() Stats {
	return in.stats
}

func (in *Injector) affects(t schema.EventType) bool {
	if in.types == nil {
		return true
	}
	_, ok := in.types[t]
	return ok
}

// Process applies faults to ev and returns the events to emit now, possibly none.
func (in *Injector) Process(ev Event) []Event {
	in.stats.In++
	if !in.affects(ev.Header.Type) {
		return in.emit([]Event{ev})
	}
	if in.shouldDrop() {
		in.stats.Dropped++
		return nil
	}
	ev = in.delay(ev)
	if in.cfg.ReorderWindow <= 1 {
		return in.emit(in.duplicate(ev))
	}

	in.pending = append(in.pending, ev)
	if len(in.pending) < in.cfg.ReorderWindow {
		return nil
	}
	return in.emit(in.duplicate(in.take()))
}

// Flush releases the events still held by the reorder window.
func (in *Injector) Flush() []Event {
	var out []Event
	for len(in.pending) > 0 {
		out = append(out, in.duplicate(in.take())...)
	}
	return in.emit(out)
}

func (in *Injector) take() Event {
	idx := in.rng.Intn(len(in.pending))
	ev := in.pending[idx]
	in.pending = append(in.pending[:idx], in.pending[idx+1:]...)
	return ev
}

func (in *Injector) emit(events []Event) []Event {
	in.stats.Out += len(events)
	return events
}

func (in *Injector) shouldDrop() bool {
	return in.cfg.DropRate > 0 && in.rng.Float64() < in.cfg.DropRate
}

func (in *Injector) duplicate(ev Event) []Event {
	if in.cfg.DuplicateRate > 0 && in.rng.Float64() < in.cfg.DuplicateRate {
		in.stats.Duplicated++
		return []Event{ev, ev}
	}
	return []Event{ev}
}

// delay pushes TsRecv back by up to MaxDelay. TsEvent is left alone so
// event-time playback keeps its original pacing.
func (in *Injector) delay(ev Event) Event {
	if in.cfg.MaxDelay <= 0 {
		return ev
	}
	d := in.rng.Int63n(in.cfg.MaxDelay.Nanoseconds() + 1)
	if d == 0 {
		return ev
	}
	in.stats.Delayed++
	if ev.Header.TsRecv == 0 {
		ev.Header.TsRecv = ev.Header.TsEvent
	}
	ev.Header.TsRecv += d
	return ev
}

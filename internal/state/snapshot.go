package state

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/errors"

	"hft/internal/schema"
)

// Snapshot captures positions at a WAL sequence number.
type Snapshot struct {
	Timestamp   int64             `json:"timestamp"`
	LastSeq     uint64            `json:"last_seq"`
	LastEventTs int64             `json:"last_event_ts"`
	Positions   []schema.Position `json:"positions"`
}

// Snapshot builds a snapshot of the book tagged with WAL metadata.
func (b *Book) Snapshot(lastSeq uint64, lastEventTs int64) Snapshot {
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Positions:   b.Positions(),
	}
}

// WriteSnapshot writes the snapshot as indented JSON, creating parent directories.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot").With("path", path)
	}
	return snap, nil
}

// CompareSnapshots checks that both snapshots hold the same open positions.
// Flat positions are ignored.
func CompareSnapshots(expected, actual Snapshot) error {
	want := openPositions(expected)
	got := openPositions(actual)
	if len(want) != len(got) {
		return errors.Errorf("snapshot position count mismatch: expected=%d actual=%d", len(want), len(got))
	}
	for symbol, w := range want {
		g, ok := got[symbol]
		if !ok {
			return errors.Errorf("snapshot missing symbol %s", symbol)
		}
		if !almostEqual(w.Size, g.Size) {
			return errors.Errorf("snapshot size mismatch: symbol=%s expected=%g actual=%g", symbol, w.Size, g.Size)
		}
		if !almostEqual(w.EntryPrice, g.EntryPrice) {
			return errors.Errorf("snapshot entry mismatch: symbol=%s expected=%g actual=%g", symbol, w.EntryPrice, g.EntryPrice)
		}
	}
	return nil
}

func openPositions(snap Snapshot) map[string]schema.Position {
	out := make(map[string]schema.Position, len(snap.Positions))
	for _, p := range snap.Positions {
		if p.Size != 0 {
			out[p.Symbol] = p
		}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

package state

import (
	"context"

	"github.com/yanun0323/errors"

	"hft/internal/codec"
	"hft/internal/recorder"
	"hft/internal/schema"
)

// RecoverConfig controls snapshot plus WAL recovery.
type RecoverConfig struct {
	WALDir       string
	SnapshotPath string
	FilePrefix   string
	SkipVerify   bool
}

// RecoverResult holds the rebuilt book and the position in the WAL it reflects.
type RecoverResult struct {
	Book        *Book
	LastSeq     uint64
	LastEventTs int64
	Replayed    int
}

// Recover loads the snapshot when one is configured and applies every fill
// recorded after its LastSeq.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, errors.New("recover: wal dir is empty")
	}

	res := RecoverResult{Book: NewBook()}
	if cfg.SnapshotPath != "" {
		snap, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		res.Book.Restore(snap)
		res.LastSeq = snap.LastSeq
		res.LastEventTs = snap.LastEventTs
	}
	floor := res.LastSeq

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        cfg.WALDir,
		FilePrefix: cfg.FilePrefix,
		SkipVerify: cfg.SkipVerify,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Seq <= floor {
			return nil
		}
		if header.Seq > res.LastSeq {
			res.LastSeq = header.Seq
		}
		if header.TsEvent > res.LastEventTs {
			res.LastEventTs = header.TsEvent
		}
		if header.Type != schema.EventTypeFill {
			return nil
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return errors.New("recover: short fill payload").With("seq", header.Seq)
		}
		res.Book.ApplyFill(fill)
		res.Replayed++
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}
	return res, nil
}

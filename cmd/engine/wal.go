package main

import (
	"context"
	"os"

	"github.com/yanun0323/logs"

	"hft/internal/obs"
	"hft/internal/ops"
	"hft/internal/recorder"
	"hft/internal/schema"
	"hft/internal/state"
)

// walSession owns the recorder for one engine run. Positions found in the WAL
// at startup are kept so the risk manager starts from them.
type walSession struct {
	cfg       ops.RecorderConfig
	writer    *recorder.Writer
	log       *recorder.Log
	recovered []schema.Position
}

func openWAL(ctx context.Context, cfg ops.RecorderConfig) (*walSession, error) {
	w, err := recorder.NewWriter(recorder.DefaultConfig(cfg.Dir))
	if err != nil {
		return nil, err
	}

	res, err := state.Recover(ctx, recoverConfig(cfg))
	if err != nil {
		return nil, err
	}

	// the writer outlives the signal context so Close can drain it
	if err := w.Start(context.Background()); err != nil {
		return nil, err
	}

	l := recorder.NewLog(w, obs.NewTraceGenerator(0))
	l.Resume(res.LastSeq)
	logs.Infof("wal opened: %s, last seq: %d, replayed fills: %d, positions: %d",
		cfg.Dir, res.LastSeq, res.Replayed, len(res.Book.Positions()))

	return &walSession{
		cfg:       cfg,
		writer:    w,
		log:       l,
		recovered: res.Book.Positions(),
	}, nil
}

// Close flushes the WAL and, when a snapshot path is configured, writes the
// positions rebuilt from it.
func (s *walSession) Close(ctx context.Context) {
	if err := s.writer.Close(); err != nil {
		logs.Errorf("wal close failed, err: %+v", err)
		return
	}
	if s.cfg.SnapshotPath == "" {
		return
	}

	res, err := state.Recover(ctx, recoverConfig(s.cfg))
	if err != nil {
		logs.Errorf("wal snapshot rebuild failed, err: %+v", err)
		return
	}
	snap := res.Book.Snapshot(res.LastSeq, res.LastEventTs)
	if err := state.WriteSnapshot(s.cfg.SnapshotPath, snap); err != nil {
		logs.Errorf("write snapshot failed, err: %+v", err)
		return
	}
	logs.Infof("snapshot written: %s, last seq: %d, positions: %d", s.cfg.SnapshotPath, snap.LastSeq, len(snap.Positions))
}

func recoverConfig(cfg ops.RecorderConfig) state.RecoverConfig {
	rc := state.RecoverConfig{WALDir: cfg.Dir}
	if cfg.SnapshotPath != "" {
		if _, err := os.Stat(cfg.SnapshotPath); err == nil {
			rc.SnapshotPath = cfg.SnapshotPath
		}
	}
	return rc
}

package engine

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/codec"
	"hft/internal/recorder"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// Replay runs the snapshots recorded in a WAL directory through the engine in
// backtest mode and returns how many were replayed. Orders go to the paper venue.
func (e *Engine) Replay(ctx context.Context, cfg recorder.PlaybackConfig) (int, error) {
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return 0, err
	}

	prev := e.Mode()
	e.SetMode(schema.TradingModeBacktest)
	defer e.SetMode(prev)

	snapshots := make(chan schema.MarketSnapshot, e.cfg.BatchSize)
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, snapshots)
	}()

	count := 0
	playErr := pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Type != schema.EventTypeSnapshot {
			return nil
		}
		snap, ok := codec.DecodeSnapshot(payload)
		if !ok {
			return errors.Wrap(exception.ErrSerialization, "decode snapshot").With("seq", header.Seq)
		}
		select {
		case snapshots <- snap:
			count++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(snapshots)
	runErr := <-done

	if err := errors.Join(playErr, runErr); err != nil {
		return count, err
	}
	logs.Infof("backtest replayed %d snapshots from %s", count, cfg.Dir)
	return count, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/codec"
	"hft/internal/recorder"
	"hft/internal/schema"
	"hft/internal/state"
	"hft/pkg/exception"
)

func main() {
	dir := flag.String("dir", "data/wal", "WAL directory")
	prefix := flag.String("prefix", "", "WAL file prefix (default: hft)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	decode := flag.Bool("decode", false, "Print every decision, order and fill")
	snapshot := flag.String("verify-snapshot", "", "Compare positions rebuilt from fills against this snapshot")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:         *dir,
		FilePrefix:  *prefix,
		Speed:       *speed,
		UseRecvTime: *useRecv,
		SkipVerify:  *noChecksum,
	})
	if err != nil {
		logs.Fatalf("playback init failed, err: %+v", err)
	}

	d := newDump(*decode)
	if err := pb.Run(ctx, d.handle); err != nil {
		logs.Fatalf("playback run failed, err: %+v", err)
	}
	d.summary()

	if *snapshot != "" {
		if err := d.verify(*snapshot); err != nil {
			logs.Fatalf("snapshot verification failed, err: %+v", err)
		}
		fmt.Printf("snapshot verified: %s positions=%d\n", *snapshot, len(d.book.Positions()))
	}
}

type dump struct {
	decode bool
	total  int
	counts map[schema.EventType]int
	trades int
	book   *state.Book
}

func newDump(decode bool) *dump {
	return &dump{
		decode: decode,
		counts: make(map[schema.EventType]int),
		book:   state.NewBook(),
	}
}

func (d *dump) handle(header schema.EventHeader, payload []byte) error {
	d.total++
	d.counts[header.Type]++

	switch header.Type {
	case schema.EventTypeDecision:
		pred, decision, ok := codec.DecodeDecision(payload)
		if !ok {
			return decodeError(header)
		}
		if decision.ShouldTrade {
			d.trades++
		}
		if d.decode {
			fmt.Printf("%08d decision %s edge=%.2fbps conf=%.2f style=%s size=%.2f trade=%t reason=%q\n",
				header.Seq, pred.Symbol, pred.EdgeBps, pred.Confidence, decision.Style, decision.SizeFraction, decision.ShouldTrade, decision.Reason)
		}
	case schema.EventTypeOrder:
		req, ok := codec.DecodeOrder(payload)
		if !ok {
			return decodeError(header)
		}
		if d.decode {
			price := "mkt"
			if req.Price != nil {
				price = fmt.Sprintf("%g", *req.Price)
			}
			fmt.Printf("%08d order %s %s %s qty=%g price=%s tif=%s id=%s\n",
				header.Seq, req.Symbol, req.Side, req.OrderType, req.Quantity, price, req.TimeInForce, req.ClientID)
		}
	case schema.EventTypeFill:
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return decodeError(header)
		}
		d.book.ApplyFill(fill)
		if d.decode {
			fmt.Printf("%08d fill %s %s %s qty=%g price=%g fee=%.2fbps maker=%t\n",
				header.Seq, fill.Venue, fill.Symbol, fill.Side, fill.Quantity, fill.Price, fill.FeeBps, fill.Maker)
		}
	case schema.EventTypeSnapshot:
		if d.decode {
			if _, ok := codec.DecodeSnapshot(payload); !ok {
				return decodeError(header)
			}
		}
	}
	return nil
}

func (d *dump) summary() {
	types := make([]schema.EventType, 0, len(d.counts))
	for t := range d.counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Printf("records=%d\n", d.total)
	for _, t := range types {
		fmt.Printf("  %-10s %d\n", t, d.counts[t])
	}
	fmt.Printf("decisions to trade=%d\n", d.trades)
	for _, p := range d.book.Positions() {
		fmt.Printf("  position %s size=%g entry=%g realized=%.2f\n", p.Symbol, p.Size, p.EntryPrice, p.RealizedPnL)
	}
}

// verify compares the positions built from every fill in the WAL with a
// snapshot written at the end of the same run.
func (d *dump) verify(path string) error {
	expected, err := state.ReadSnapshot(path)
	if err != nil {
		return err
	}
	return state.CompareSnapshots(expected, d.book.Snapshot(0, 0))
}

func decodeError(header schema.EventHeader) error {
	return errors.Wrap(exception.ErrSerialization, "decode payload").With("seq", header.Seq, "type", header.Type)
}

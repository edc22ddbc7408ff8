package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/codec"
	"hft/internal/mdg"
	"hft/internal/obs"
	"hft/internal/recorder"
	"hft/internal/schema"
)

func main() {
	walDir := flag.String("wal-dir", "data/wal_synthetic", "Output WAL directory")
	symbols := flag.String("symbols", "BTC,ETH,SOL", "Comma separated symbols")
	venue := flag.String("venue", "hyperliquid", "Venue stamped on snapshots")
	ticks := flag.Int("ticks", 10_000, "Number of snapshots to generate")
	step := flag.Duration("step", 100*time.Millisecond, "Event time between snapshots")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	basePrice := flag.Float64("base-price", 100, "Starting mid price")
	spreadBps := flag.Float64("spread-bps", 2, "Touch spread in basis points")
	volBps := flag.Float64("volatility-bps", 1, "Mid step standard deviation in basis points")
	depth := flag.Int("depth", 10, "Book levels per side")
	tradeProb := flag.Float64("trade-prob", 0.3, "Probability of a trade per snapshot")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *ticks <= 0 {
		logs.Fatal("ticks must be > 0")
	}
	v, err := schema.ParseVenue(*venue)
	if err != nil {
		logs.Fatalf("invalid venue, err: %+v", err)
	}

	cfg := mdg.DefaultConfig(splitSymbols(*symbols)...)
	cfg.Venue = v
	cfg.Seed = *seed
	cfg.BasePrice = *basePrice
	cfg.SpreadBps = *spreadBps
	cfg.VolatilityBps = *volBps
	cfg.Depth = *depth
	cfg.TradeProb = *tradeProb
	gen, err := mdg.NewGenerator(cfg)
	if err != nil {
		logs.Fatalf("generator init failed, err: %+v", err)
	}

	writer, err := recorder.NewWriter(recorder.DefaultConfig(*walDir))
	if err != nil {
		logs.Fatalf("wal init failed, err: %+v", err)
	}
	if err := writer.Start(context.Background()); err != nil {
		logs.Fatalf("wal start failed, err: %+v", err)
	}

	trace := obs.NewTraceGenerator(uint64(cfg.Seed))
	clock := time.Now().UTC()
	written := 0
	for i := 0; i < *ticks; i++ {
		snap := gen.Next(clock)
		header := schema.NewHeader(schema.EventTypeSnapshot, snap.Venue, uint64(i+1), snap.TimestampNs, snap.TimestampNs)
		header.TraceID = trace.Next()
		if err := writer.Append(ctx, header, codec.EncodeSnapshot(nil, snap)); err != nil {
			logs.Errorf("wal append failed, err: %+v", err)
			break
		}
		written++
		clock = clock.Add(*step)
	}

	if err := writer.Close(); err != nil {
		logs.Fatalf("wal close failed, err: %+v", err)
	}
	logs.Infof("generated %d snapshots for %v into %s", written, cfg.Symbols, *walDir)
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, strings.ToUpper(sym))
		}
	}
	return out
}

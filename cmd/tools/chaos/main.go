package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yanun0323/logs"

	"hft/internal/chaos"
	"hft/internal/recorder"
	"hft/internal/schema"
)

func main() {
	inputDir := flag.String("input-dir", "data/wal", "Input WAL directory")
	inputPrefix := flag.String("input-prefix", "", "Input WAL file prefix (default: hft)")
	outputDir := flag.String("output-dir", "data/wal_chaos", "Output WAL directory")
	outputPrefix := flag.String("output-prefix", "chaos", "Output WAL file prefix")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	maxDelay := flag.Duration("max-delay", 0, "Max receive delay")
	types := flag.String("types", "snapshot", "Comma separated event types to disturb (empty=all)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventTypes, err := parseTypes(*types)
	if err != nil {
		logs.Fatalf("invalid types, err: %+v", err)
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        *inputDir,
		FilePrefix: *inputPrefix,
		SkipVerify: *noChecksum,
	})
	if err != nil {
		logs.Fatalf("playback init failed, err: %+v", err)
	}

	inj, err := chaos.NewInjector(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
		MaxDelay:      *maxDelay,
		Types:         eventTypes,
	})
	if err != nil {
		logs.Fatalf("chaos config invalid, err: %+v", err)
	}

	outCfg := recorder.DefaultConfig(*outputDir)
	outCfg.FilePrefix = *outputPrefix
	writer, err := recorder.NewWriter(outCfg)
	if err != nil {
		logs.Fatalf("writer init failed, err: %+v", err)
	}
	if err := writer.Start(context.Background()); err != nil {
		logs.Fatalf("writer start failed, err: %+v", err)
	}

	var seq uint64
	appendAll := func(events []chaos.Event) error {
		for _, ev := range events {
			seq++
			ev.Header.Seq = seq
			if err := writer.Append(ctx, ev.Header, ev.Payload); err != nil {
				return err
			}
		}
		return nil
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		ev := chaos.Event{Header: header, Payload: append([]byte(nil), payload...)}
		return appendAll(inj.Process(ev))
	})
	if err == nil {
		err = appendAll(inj.Flush())
	}
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		logs.Fatalf("chaos run failed, err: %+v", err)
	}

	stats := inj.Stats()
	logs.Infof("chaos written to %s: in=%d out=%d dropped=%d duplicated=%d delayed=%d",
		*outputDir, stats.In, stats.Out, stats.Dropped, stats.Duplicated, stats.Delayed)
}

func parseTypes(s string) ([]schema.EventType, error) {
	var out []schema.EventType
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := schema.ParseEventType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

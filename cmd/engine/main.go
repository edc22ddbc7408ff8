package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/alert"
	"hft/internal/engine"
	"hft/internal/features"
	"hft/internal/inference"
	"hft/internal/journal"
	"hft/internal/obs"
	"hft/internal/ops"
	"hft/internal/recorder"
	"hft/internal/risk"
	"hft/internal/router"
	"hft/internal/schema"
	"hft/internal/stream"
	"hft/pkg/exception"
)

func main() {
	configPath := flag.String("config", ops.DefaultConfigPath, "Path to TOML config")
	envPath := flag.String("env", ".env", "Path to .env file")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	pyroscopeAddr := flag.String("pyroscope-addr", "", "Pyroscope server address (empty=disable)")
	replayDir := flag.String("replay-dir", "", "WAL directory to backtest instead of trading")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	flag.Parse()

	ops.LoadEnv(*envPath)
	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("config load failed, err: %+v", err)
	}
	ops.SetupLogger(os.Getenv("LOG_LEVEL"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hft.engine",
			ServerAddress:   *pyroscopeAddr,
			Tags:            map[string]string{"mode": cfg.Engine.Mode},
			Logger:          logs.Default(),
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("pyroscope start failed, err: %+v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(ctx, cfg, *configPath, *configReload, *replayDir, *replaySpeed); err != nil {
		logs.Fatalf("engine stopped, err: %+v", err)
	}
	logs.Info("engine shutdown complete")
}

func run(ctx context.Context, cfg ops.Config, configPath string, reload time.Duration, replayDir string, replaySpeed float64) error {
	replayDir, err := replaySource(cfg, replayDir)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		fatal     error
		fatalOnce sync.Once
	)
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	metrics := obs.NewMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	serve(ctx, &wg, "metrics", cfg.Server.MetricsAddr, mux)

	streams := stream.NewServer()
	serve(ctx, &wg, "stream", cfg.Server.StreamAddr, streams.Handler())

	alerts := alert.NewPublisher(streams, notifiers(ctx, cfg.Alerts)...)
	defer alerts.Close()
	wg.Add(1)
	go func() {
		defer wg.Done()
		alerts.Run(ctx)
	}()

	riskManager := risk.NewManager(cfg.Risk)
	deps := engine.Deps{
		Metrics:   metrics,
		Features:  features.NewBuilder(cfg.Engine.FeatureWindowSize, metrics),
		Pool:      inference.NewPool(inference.PoolConfig{Timeout: cfg.Engine.InferenceTimeout(), Factory: inferenceRuntime(cfg.Models)}, metrics),
		Risk:      riskManager,
		Router:    router.New(cfg.Gate, riskManager),
		Publisher: streams,
		Alerter:   alerts,
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(ctx, cfg.Journal.DSN)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logs.Warnf("journal close failed, err: %+v", err)
			}
		}()
		deps.Journal = store
	}

	var wal *walSession
	if cfg.Recorder.Enabled && replayDir == "" {
		var err error
		wal, err = openWAL(ctx, cfg.Recorder)
		if err != nil {
			return err
		}
		defer wal.Close(context.Background())
		deps.Recorder = wal.log
		for _, p := range wal.recovered {
			riskManager.UpdatePosition(p)
		}
	}

	e := engine.New(engine.Config{
		Mode:         cfg.Engine.TradingMode(),
		BatchSize:    cfg.Engine.BatchSize,
		BatchTimeout: cfg.Engine.BatchTimeout(),
		QueueSize:    cfg.Engine.QueueSize,
	}, deps)

	loadModels(e, cfg.Models)

	if configPath != "" && reload > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ops.Watch(ctx, configPath, reload, func(next ops.Config) {
				e.ApplyLimits(next.Gate, next.Risk)
				e.SetMode(next.Engine.TradingMode())
			})
		}()
	}

	if replayDir != "" {
		_, err := e.Replay(ctx, recorder.PlaybackConfig{Dir: replayDir, Speed: replaySpeed})
		return err
	}

	venues, err := startVenues(ctx, &wg, e, cfg, metrics.IncDroppedFrame)
	if err != nil {
		return err
	}
	defer venues.Disconnect()

	for _, symbol := range cfg.Engine.Symbols {
		e.AddSymbol(symbol, venues.Primary())
	}
	if err := venues.Subscribe(ctx, cfg.Engine.Symbols); err != nil {
		return err
	}

	if ops.UniverseEnabled() {
		venues.RunUniverse(ctx, &wg, e, cfg.Universe, fail)
	}

	if err := e.Start(ctx); err != nil {
		return err
	}
	return fatal
}

// replaySource returns the WAL directory to backtest, or "" to trade. The flag
// wins; backtest mode without it replays the recorder directory.
func replaySource(cfg ops.Config, flagDir string) (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	if cfg.Engine.TradingMode() != schema.TradingModeBacktest {
		return "", nil
	}
	dir := cfg.Recorder.Dir
	if dir == "" {
		return "", errors.Wrap(exception.ErrConfig, "backtest mode needs -replay-dir or recorder.dir")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", errors.Wrap(exception.ErrConfig, "backtest WAL directory not found").With("dir", dir)
	}
	return dir, nil
}

// serve runs an HTTP server until ctx is done. A listen failure is logged; the
// engine keeps trading without that surface.
func serve(ctx context.Context, wg *sync.WaitGroup, name, addr string, handler http.Handler) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		logs.Infof("%s server listening on %s", name, addr)
		if err := stream.Serve(ctx, addr, handler); err != nil {
			logs.Errorf("%s server failed, err: %+v", name, err)
		}
	}()
}

func notifiers(ctx context.Context, cfg ops.AlertsConfig) []alert.Notifier {
	var out []alert.Notifier

	fcm, err := alert.NewFCM(ctx, cfg.FCMCredentials, cfg.FCMTopic)
	switch {
	case err != nil:
		logs.Warnf("fcm disabled, err: %+v", err)
	case fcm != nil:
		out = append(out, fcm)
	}

	if token, chatID, ok := ops.TelegramTarget(); ok {
		tg, err := alert.NewTelegram(token, chatID)
		if err != nil {
			logs.Warnf("telegram disabled, err: %+v", err)
		} else {
			out = append(out, tg)
		}
	}
	return out
}

// inferenceRuntime returns nil when no inference runtime is available; models then stay unused.
func inferenceRuntime(cfg ops.ModelsConfig) inference.BackendFactory {
	factory, err := inference.NewRuntime(cfg.RuntimeLib)
	if err != nil {
		logs.Warnf("inference runtime unavailable, predictions are rule-based, err: %+v", err)
		return nil
	}
	return factory
}

func loadModels(e *engine.Engine, cfg ops.ModelsConfig) {
	dirs := map[schema.AssetCategory]string{
		schema.AssetCategoryCryptoFutures: cfg.CryptoDir,
		schema.AssetCategoryEquity:        cfg.EquityDir,
	}
	for category, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := e.LoadModels(category, dir); err != nil {
			logs.Warnf("models for %s unavailable, using rules, err: %+v", category, err)
		}
	}
}

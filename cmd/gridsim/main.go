package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/grid-simulator/core"
	"github.com/signalsfoundry/grid-simulator/env"
	"github.com/signalsfoundry/grid-simulator/internal/logging"
	"github.com/signalsfoundry/grid-simulator/internal/observability"
	"github.com/signalsfoundry/grid-simulator/model"
	"github.com/signalsfoundry/grid-simulator/sims/langton"
	"github.com/signalsfoundry/grid-simulator/sims/life"
	"github.com/signalsfoundry/grid-simulator/timectrl"
)

func main() {
	sim := flag.String("sim", "life", "bundled simulation to run: life or langton")
	width := flag.Int("width", 32, "grid width in cells")
	height := flag.Int("height", 32, "grid height in cells")
	generations := flag.Int("generations", 100, "number of generations to run (0 runs until interrupted)")
	tick := flag.Duration("tick", 250*time.Millisecond, "generation interval in real-time mode")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	workers := flag.Int("workers", 0, "dispatch reactions in parallel with this many workers (0 = sequential)")
	seed := flag.Int64("seed", 42, "seed for the life board's initial population")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, _ := logging.EnsureRunID(context.Background())

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	bounds := model.Dimension{Width: *width, Height: *height}
	environment, err := env.New(env.Config{Bounds: bounds, Wrap: env.Toroidal}, log)
	if err != nil {
		log.Error(ctx, "failed to build environment", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var board *life.Board
	switch *sim {
	case "life":
		board = life.NewBoard(bounds)
		board.Randomize(*seed)
		if _, err := board.Install(environment); err != nil {
			log.Error(ctx, "failed to install life board", logging.String("error", err.Error()))
			os.Exit(1)
		}
	case "langton":
		start := model.Position{X: *width / 2, Y: *height / 2}
		if _, err := environment.Insert(langton.NewAnt(langton.Up), model.At(start)); err != nil {
			log.Error(ctx, "failed to insert ant", logging.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		log.Error(ctx, "unknown simulation", logging.String("sim", *sim))
		os.Exit(1)
	}

	opts := []core.Option{core.WithLogger(log), core.WithCollector(collector)}
	if *workers > 0 {
		opts = append(opts, core.WithParallelDispatch(*workers))
	}
	engine, err := core.New(environment, opts...)
	if err != nil {
		log.Error(ctx, "failed to build engine", logging.String("error", err.Error()))
		os.Exit(1)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	runner := timectrl.NewRunner(engine, *tick, mode)
	runner.AddListener(func(generation uint64, report env.Report) {
		fields := []logging.Field{
			logging.Any("generation", generation),
			logging.Int("population", environment.Len()),
			logging.Int("moved", report.Moved),
			logging.Int("mutated", report.Mutated),
			logging.Int("spawned", report.Spawned),
			logging.Int("removed", report.Removed),
		}
		if board != nil {
			fields = append(fields, logging.Int("live_cells", board.Population()))
		}
		if len(report.Diagnostics) > 0 {
			fields = append(fields, logging.Int("diagnostics", len(report.Diagnostics)))
		}
		log.Info(ctx, "generation complete", fields...)
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log.Info(ctx, "starting simulation",
		logging.String("sim", *sim),
		logging.Int("width", *width),
		logging.Int("height", *height),
		logging.Int("generations", *generations),
		logging.String("mode", mode.String()),
		logging.Int("workers", *workers),
	)
	<-runner.Run(runCtx, *generations)
	log.Info(ctx, "simulation complete", logging.Any("generation", runner.Generation()))

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

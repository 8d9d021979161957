package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"digilib/internal/app"
	"digilib/internal/config"
	"digilib/internal/handlers"
	"digilib/internal/lending"
	"digilib/internal/logging"
	"digilib/internal/metrics"
	"digilib/internal/reviews"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Wczytaj zmienne środowiskowe z pliku .env
	if err := godotenv.Load(); err != nil {
		log.Println("Brak pliku .env - używam zmiennych systemowych")
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Błąd konfiguracji: %v", err)
	}
	logger := logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("serwer zakończył pracę z błędem", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("błąd zamykania zależności", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := lending.New(deps.Store, deps.Locker,
		lending.WithPolicy(cfg.Policy()),
		lending.WithLogger(logger),
		lending.WithNotifier(deps.Notifier),
		lending.WithRecorder(metrics.NewLending(reg)),
	)
	if err != nil {
		return err
	}
	rev := reviews.New(deps.Store, deps.Locker, reviews.WithLogger(logger))

	h := handlers.New(engine, rev, handlers.WithLogger(logger))
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			Auth:       deps.Auth,
			Limiter:    deps.Limiter,
			RateWindow: cfg.RateWindow,
			Metrics:    metrics.Handler(reg),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Serwer uruchomiony", "port", cfg.Port, "store", cfg.StoreDriver, "hold_policy", cfg.HoldPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("zatrzymywanie serwera")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.HoldPolicy == string(lending.HoldPolicyFIFO) && cfg.HoldSweepInterval > 0 {
		g.Go(func() error {
			sweepHolds(ctx, engine, cfg.HoldSweepInterval, logger)
			return nil
		})
	}
	return g.Wait()
}

// sweepHolds co interval zwalnia odłożenia, których termin minął
func sweepHolds(ctx context.Context, engine *lending.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.ExpireHolds(ctx, time.Now())
			if err != nil {
				logger.Error("błąd zwalniania odłożeń", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("zwolniono przeterminowane odłożenia", "count", n)
			}
		}
	}
}

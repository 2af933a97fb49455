package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/api"
	"github.com/david/scholarship-finder/internal/app"
	"github.com/david/scholarship-finder/internal/config"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SCHOLAR_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zlog, app.Options{})
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if cfg.Schedule.Enabled {
		if err := a.Scheduler.Schedule(scheduler.JobIngest, cfg.Schedule.Ingest); err != nil {
			zlog.Fatal("invalid ingest schedule", zap.Error(err))
		}
		if err := a.Scheduler.Schedule(scheduler.JobLinkSweep, cfg.Schedule.LinkSweep); err != nil {
			zlog.Fatal("invalid link sweep schedule", zap.Error(err))
		}
		a.Scheduler.Start(ctx)
		defer a.Scheduler.Stop()
	}
	if cfg.Schedule.RunOnBoot {
		go func() {
			if err := a.Scheduler.Trigger(ctx, scheduler.JobIngest); err != nil {
				zlog.Warn("boot ingestion did not complete", zap.Error(err))
			}
		}()
	}

	srv := api.NewServer(api.Options{
		Store:       a.Store,
		Matcher:     a.Aggregator,
		Sources:     a.Orchestrator,
		Jobs:        a.Scheduler,
		AdminSecret: cfg.AdminSecret,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      zlog,
	})

	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Port), zap.Int("sources", len(a.Registry.Enabled())))
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("server shutdown", zap.Error(err))
	}
}

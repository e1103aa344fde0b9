package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/doculab/extract/internal/arcxml"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
	"github.com/doculab/extract/internal/export"
	"github.com/doculab/extract/internal/extract"
	"github.com/doculab/extract/internal/native"
	"github.com/doculab/extract/internal/olebin"
	"github.com/doculab/extract/internal/remote"
	"github.com/doculab/extract/internal/repository"
	"github.com/doculab/extract/internal/resilient"
	"github.com/doculab/extract/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Remote.APIKey == "" {
		logger.Warn("OCR_API_KEY not set; remote extraction tier disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open job store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}
	defer repository.Close(db, logger)
	if err := repository.HealthCheck(ctx, db, 3*time.Second); err != nil {
		logger.Error("job store health failed", "error", err)
		os.Exit(1)
	}

	cache, err := resilient.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.MaxEntries, logger)
	if err != nil {
		logger.Error("failed to open call cache", "error", err, "dir", cfg.Cache.Dir)
		os.Exit(1)
	}
	metrics := resilient.NewMetrics()
	client := resilient.NewClient(cache, metrics, logger,
		resilient.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		resilient.WithRetryPolicy(resilient.RetryPolicy{
			MaxAttempts: cfg.Remote.MaxAttempts,
			BaseDelay:   cfg.Remote.BaseDelay,
		}),
		resilient.WithServiceInterval(remote.ServiceName, cfg.Remote.MinInterval),
		resilient.WithMemCacheSize(cfg.Cache.MemEntries),
	)

	launcher := native.NewBridgeLauncher(cfg.Native.Bridge, logger)
	caps := extract.Detect(launcher)
	logger.Info("capabilities detected", "native_automation", caps.NativeAutomation)

	var nativeH *native.Handler
	if caps.NativeAutomation {
		nativeH = native.NewHandler(launcher, logger)
	}
	converter := remote.NewConverter(cfg.Remote.Converter, logger)
	remoteH := remote.NewHandler(remote.Config{
		APIKey:   cfg.Remote.APIKey,
		BaseURL:  cfg.Remote.BaseURL,
		Language: cfg.Remote.Language,
	}, client, converter, logger)

	factory := extract.NewFactory(caps,
		handlerOrNil(nativeH),
		olebin.NewParser(logger),
		arcxml.NewParser(logger),
		remoteH,
		logger,
	)

	jobs := repository.NewJobRepository(db, logger)
	exporter := export.NewService(logger)
	srv := server.NewServer(factory, jobs, exporter, metrics, caps, logger)

	go func() {
		if err := srv.Run(cfg.Server.Addr); err != nil {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// handlerOrNil keeps a typed-nil *native.Handler from leaking into the
// document.Handler interface.
func handlerOrNil(h *native.Handler) document.Handler {
	if h == nil {
		return nil
	}
	return h
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-presign/internal/logging"
	"github.com/tendant/simple-presign/internal/metrics"
	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/api"
	"github.com/tendant/simple-presign/pkg/presign/config"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Environment, cfg.LogLevel)
	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	svc, err := cfg.BuildService(ctx,
		presign.WithLogger(logger),
		presign.WithRecorder(m),
	)
	cancel()
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	handlers := api.NewHandlers(svc,
		api.WithExposeErrors(cfg.ExposeErrorDetails),
		api.WithHandlerLogger(logger),
	)

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: api.NewRouter(handlers, api.RouterConfig{
			Logger:         logger,
			Metrics:        m,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Presign server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"backend", cfg.StorageBackend,
			"bucket", cfg.BucketName,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}

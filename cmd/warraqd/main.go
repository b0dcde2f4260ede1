package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warraq-app/warraq/internal/auth"
	"github.com/warraq-app/warraq/internal/common"
	"github.com/warraq-app/warraq/internal/history"
	"github.com/warraq-app/warraq/internal/ocr"
	"github.com/warraq-app/warraq/internal/output"
	"github.com/warraq-app/warraq/internal/pipeline"
	"github.com/warraq-app/warraq/internal/remote"
	"github.com/warraq-app/warraq/internal/retry"
	"github.com/warraq-app/warraq/internal/server"
	"github.com/warraq-app/warraq/internal/split"
)

func main() {
	// Bootstrap logger for startup failures; components use slog.
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formats, err := output.ParseFormats(strings.Join(cfg.Convert.Formats, ","))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var creds auth.Provider
	if cfg.Auth.AccessToken != "" {
		creds = auth.StaticProvider{AccessToken: cfg.Auth.AccessToken}
	} else {
		cachePath := cfg.Auth.TokenCache
		if cachePath == "" {
			cachePath = auth.DefaultCachePath()
		}
		creds = auth.NewGoogleProvider(cfg.Auth.ClientID, cfg.Auth.ClientSecret, cachePath, cfg.Auth.CallbackAddr, appLog)
	}

	client := remote.NewClient(appLog,
		remote.WithBaseURLs(cfg.Remote.APIBaseURL, cfg.Remote.UploadBaseURL),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithPolicy(retry.NewPolicy(retry.WithMaxAttempts(cfg.Remote.MaxRetries))),
	)

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path, appLog)
		if err != nil {
			log.Fatalf("history: %v", err)
		}
		defer store.Close()
	}

	hub := server.NewHub(appLog)
	go hub.Run(ctx)

	controller := pipeline.NewController(
		split.NewSplitter(split.NewFitzEngine(), appLog),
		ocr.NewOrchestrator(client, creds, appLog),
		pipeline.NewFormatWriter(formats, output.Options{PageSeparator: cfg.Convert.PageSeparator}),
		pipeline.WithProgressSink(hub),
		pipeline.WithHistory(store),
		pipeline.WithDPI(cfg.Convert.DPI),
		pipeline.WithConcurrency(cfg.Convert.Concurrency),
		pipeline.WithLogger(appLog),
	)

	svcOpts := []server.ServiceOption{server.WithHub(hub), server.WithServiceLogger(appLog)}
	if store != nil {
		svcOpts = append(svcOpts, server.WithHistoryReader(store))
	}
	svc := server.NewService(controller, svcOpts...)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("http serving on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	controller.CancelJob()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	log.Info("stopped")
}

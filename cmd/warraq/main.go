package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warraq-app/warraq/constants"
	"github.com/warraq-app/warraq/internal/auth"
	"github.com/warraq-app/warraq/internal/common"
	"github.com/warraq-app/warraq/internal/ocr"
	"github.com/warraq-app/warraq/internal/output"
	"github.com/warraq-app/warraq/internal/pipeline"
	"github.com/warraq-app/warraq/internal/remote"
	"github.com/warraq-app/warraq/internal/retry"
	"github.com/warraq-app/warraq/internal/split"
)

func main() {
	cfg := common.LoadConfig()

	outDir := flag.String("out", ".", "output directory")
	formatsFlag := flag.String("formats", "txt", "comma-separated output formats (txt,docx,json)")
	dpi := flag.Int("dpi", cfg.Convert.DPI, "render resolution (72-300)")
	concurrency := flag.Int("concurrency", cfg.Convert.Concurrency, "parallel OCR tasks (1-20)")
	separator := flag.String("separator", cfg.Convert.PageSeparator, "page separator for text output")
	login := flag.Bool("login", false, "run the browser sign-in flow and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, google := buildProvider(cfg, logger)

	if *login {
		if google == nil {
			fatal("sign-in needs WARRAQ_OAUTH_CLIENT_ID and WARRAQ_OAUTH_CLIENT_SECRET")
		}
		if err := google.Login(ctx); err != nil {
			fatal("sign-in failed: %v", err)
		}
		fmt.Println("signed in; token saved")
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: warraq [flags] file.pdf [file2.png ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	formats, err := output.ParseFormats(*formatsFlag)
	if err != nil {
		fatal("%v", err)
	}

	client := remote.NewClient(logger,
		remote.WithBaseURLs(cfg.Remote.APIBaseURL, cfg.Remote.UploadBaseURL),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithPolicy(retry.NewPolicy(retry.WithMaxAttempts(cfg.Remote.MaxRetries))),
	)

	controller := pipeline.NewController(
		split.NewSplitter(split.NewFitzEngine(), logger),
		ocr.NewOrchestrator(client, creds, logger),
		pipeline.NewFormatWriter(formats, output.Options{PageSeparator: *separator}),
		pipeline.WithProgressSink(pipeline.SinkFunc(printProgress)),
		pipeline.WithDPI(*dpi),
		pipeline.WithConcurrency(*concurrency),
		pipeline.WithLogger(logger),
	)

	snap, err := controller.Run(ctx, files, *outDir)
	fmt.Fprintln(os.Stderr)
	for file, msg := range snap.Errors {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", file, msg)
	}
	switch {
	case errors.Is(err, common.ErrCancelled):
		fmt.Fprintln(os.Stderr, "cancelled")
		os.Exit(130)
	case err != nil:
		fatal("%v", err)
	}
	fmt.Fprintf(os.Stderr, "done: %d/%d files\n", snap.CompletedFiles, snap.TotalFiles)
	if len(snap.Errors) > 0 {
		os.Exit(1)
	}
}

func buildProvider(cfg *common.Config, logger *slog.Logger) (auth.Provider, *auth.GoogleProvider) {
	if cfg.Auth.AccessToken != "" {
		return auth.StaticProvider{AccessToken: cfg.Auth.AccessToken}, nil
	}
	if cfg.Auth.ClientID == "" {
		return auth.StaticProvider{}, nil
	}
	cachePath := cfg.Auth.TokenCache
	if cachePath == "" {
		cachePath = auth.DefaultCachePath()
	}
	g := auth.NewGoogleProvider(cfg.Auth.ClientID, cfg.Auth.ClientSecret, cachePath, cfg.Auth.CallbackAddr, logger)
	return g, g
}

func printProgress(e pipeline.Event) {
	if e.Stage == constants.StageDone {
		fmt.Fprintf(os.Stderr, "\r%-60s %s\n", e.File, e.Stage)
		return
	}
	if e.Total > 0 {
		fmt.Fprintf(os.Stderr, "\r%-60s %-10s %d/%d (%d%%)", e.File, e.Stage, e.Current, e.Total, e.Percentage)
		return
	}
	fmt.Fprintf(os.Stderr, "\r%-60s %-10s", e.File, e.Stage)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warraq: "+format+"\n", args...)
	os.Exit(1)
}

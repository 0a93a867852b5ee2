package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/logging"
	"mediafetch/internal/server"
	"mediafetch/internal/task"
	"mediafetch/internal/worker"
)

func main() {
	cfg := config.New()
	var pollMS int

	flag.StringVar(&cfg.OutputDir, "output-dir", "", "Directory for downloaded files (default: ./downloads)")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "Host address to bind")
	flag.IntVar(&pollMS, "poll-interval-ms", 500, "Progress stream poll interval in milliseconds")
	flag.IntVar(&cfg.RequestsPerMinute, "rate", cfg.RequestsPerMinute, "Per-IP API requests per minute")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flag.Parse()

	cfg.PollInterval = time.Duration(pollMS) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ResolveOutputDir(); err != nil {
		log.Fatalf("resolve output dir: %v", err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.AbsOutputDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	// Check yt-dlp presence early.
	if err := worker.CheckYTDLP(); err != nil {
		log.Fatalf("yt-dlp not found: %v", err)
	}

	st := task.NewStore(128)
	engine := worker.NewYTDLP()
	dispatcher := task.NewDispatcher(st, engine, cfg.AbsOutputDir)

	handler := server.NewWithOptions(dispatcher, st, cfg.AbsOutputDir, server.Options{
		PollInterval:      cfg.PollInterval,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // allow streaming progress without premature timeouts
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.LogServerStart(cfg.Addr, cfg.Summary())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()
	logging.LogServerShutdown("shutdown signal received; draining", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	dispatcher.StopAccepting()
	if err := srv.Shutdown(ctx); err != nil {
		logging.LogServerShutdown("http shutdown", err)
	}
	// Running downloads are fire-and-forget; give them a bounded window to
	// wrap up, then exit regardless.
	if err := dispatcher.Drain(ctx); err != nil {
		logging.LogServerShutdown("drain timed out with tasks still running", err)
	}
	logging.LogServerShutdown("shutdown complete", nil)
}

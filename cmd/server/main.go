package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/casegen"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := casegen.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("CASEGEN_API_KEY")
	corsOrigins := os.Getenv("CASEGEN_CORS_ORIGINS")

	// Fails fast on a missing model API key.
	engine, err := casegen.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	slog.Info("engine ready",
		"provider", cfg.Chat.Provider,
		"model", cfg.Chat.Model,
		"generate_timeout", cfg.GenerateTimeout)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newServer(engine, cfg.GenerateTimeout, apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // generation waits on the model
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newServer wires the routes and the middleware chain.
func newServer(engine casegen.Engine, generateTimeout time.Duration, apiKey, corsOrigins string) http.Handler {
	h := newHandler(engine, generateTimeout)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /pages", h.handlePages)
	mux.HandleFunc("POST /preview", h.handlePreview)
	mux.HandleFunc("POST /extract", h.handleExtract)
	mux.HandleFunc("POST /generate", h.handleGenerate)
	mux.HandleFunc("POST /export/json", h.handleExportJSON)
	mux.HandleFunc("POST /export/xlsx", h.handleExportXLSX)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

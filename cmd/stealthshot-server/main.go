package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/stealthshot/api"
	"github.com/use-agent/stealthshot/cache"
	"github.com/use-agent/stealthshot/capture"
	"github.com/use-agent/stealthshot/cleaner"
	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/detect"
	"github.com/use-agent/stealthshot/probe"
	"github.com/use-agent/stealthshot/research"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
	slog.Info("stealthshot starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise capturer (launches browser) ───────────────────
	cp, err := capture.New(cfg.Browser, cfg.Capture)
	if err != nil {
		slog.Error("failed to initialise capturer", "error", err)
		os.Exit(1)
	}
	defer cp.Close()

	// ── 4. Detector, probe, cleaner, research runner ────────────────
	det := detect.NewFromConfig(cfg.Detect)
	slog.Info("detector ready", "ocr", det.OCRAvailable())

	runner := research.NewRunner(
		cp,
		det,
		probe.NewFetcher(cfg.Probe.Timeout),
		cleaner.NewCleaner(),
		cfg.Capture,
	)
	if cfg.Capture.BlockMemoryTTL > 0 {
		mem := research.NewBlockMemory(cfg.Capture.BlockMemoryTTL)
		defer mem.Stop()
		runner.WithMemory(mem)
	}

	// ── 4b. Initialise verdict cache ────────────────────────────────
	var cc *cache.Cache
	if cfg.Cache.MaxEntries > 0 {
		cc = cache.New(cfg.Cache.MaxEntries)
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cp, det, runner, cfg, cc, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Captures can take a minute; give in-flight requests time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// cp.Close() runs via defer and drains the page pool.
	slog.Info("stealthshot stopped")
}

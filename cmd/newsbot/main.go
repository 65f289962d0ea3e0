package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/feed"
	"github.com/deusflow/newsbot/internal/history"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/metrics"
	"github.com/deusflow/newsbot/internal/news"
	"github.com/deusflow/newsbot/internal/pipeline"
	"github.com/deusflow/newsbot/internal/ratelimit"
	"github.com/deusflow/newsbot/internal/score"
	"github.com/deusflow/newsbot/internal/scraper"
	"github.com/deusflow/newsbot/internal/selector"
	"github.com/deusflow/newsbot/internal/summarizer"
	"github.com/deusflow/newsbot/internal/telegram"
)

func main() {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	if cfg.ScheduleCron != "" {
		runScheduled(ctx, cfg.ScheduleCron, p)
		return
	}

	runOnce(ctx, p)
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	var store history.Store
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		ps, err := history.NewPostgresStore(cfg.DatabaseURL, cfg.HistoryRetention)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres history store: %w", err)
		}
		store = ps
		cleanup = func() { _ = ps.Close() }
	} else {
		store = history.NewFileStore(cfg.HistoryFilePath, cfg.HistoryRetention)
	}

	budget := ratelimit.NewBudget(cfg.MaxSummaryRequests)
	summ, err := summarizer.New(ctx, cfg.GeminiAPIKey, cfg.OpenAIAPIKey, budget)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	prevCleanup := cleanup
	cleanup = func() {
		summ.Close()
		prevCleanup()
	}

	fetcher := feed.NewFetcher(cfg.RequestTimeout, cfg.PaceDelay)
	normalizer := &news.Normalizer{
		FullText:   scraper.New(cfg.RequestTimeout),
		MinBodyLen: cfg.MinBodyLength,
		Lookback:   cfg.Lookback,
		Pace:       cfg.PaceDelay,
	}
	scorer := score.NewScorer(cfg)
	sel := selector.New(cfg.Selection)
	pub := telegram.NewPublisher(cfg.TelegramToken, cfg.TelegramChatID, cfg.MediaMaxBytes, cfg.MediaTimeout, cfg.PublishRetries)

	return pipeline.New(cfg, fetcher, normalizer, scorer, sel, store, summ, pub), cleanup, nil
}

// runOnce performs a single pipeline run. A run that exhausts its
// candidates gracefully still exits 0; only setup failures are
// non-zero.
func runOnce(ctx context.Context, p *pipeline.Pipeline) {
	result, err := p.Run(ctx)
	if err != nil {
		logger.Warn("run interrupted", "error", err)
		return
	}
	if result.Published {
		logger.Info("run complete", "published", result.Link, "attempts", result.Attempts)
	} else {
		logger.Info("run complete, nothing published", "attempts", result.Attempts, "trials", len(result.Trials))
	}
}

func runScheduled(ctx context.Context, spec string, p *pipeline.Pipeline) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runOnce(ctx, p)
	})
	if err != nil {
		logger.Error("invalid cron spec", "spec", spec, "error", err)
		os.Exit(1)
	}

	logger.Info("running on schedule", "cron", spec)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server error", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.GetStats())
}

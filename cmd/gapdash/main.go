package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Traderyo93/gapdash/internal/aggregate"
	"github.com/Traderyo93/gapdash/internal/api"
	"github.com/Traderyo93/gapdash/internal/config"
	"github.com/Traderyo93/gapdash/internal/gap"
	"github.com/Traderyo93/gapdash/internal/logger"
	"github.com/Traderyo93/gapdash/internal/normalize"
	"github.com/Traderyo93/gapdash/internal/pipeline"
	"github.com/Traderyo93/gapdash/internal/polygon"
	"github.com/Traderyo93/gapdash/internal/session"
	"github.com/Traderyo93/gapdash/internal/storage"
	"github.com/Traderyo93/gapdash/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config path] [update|serve]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "update"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	if command != "update" && command != "serve" {
		flag.Usage()
		os.Exit(2)
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	validate := cfg.Validate
	if command == "update" {
		validate = cfg.ValidateUpdate
	}
	if err := validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	switch command {
	case "update":
		err = runUpdate(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	}
	if err != nil {
		logger.Fatal("%s failed: %v", command, err)
	}
}

func runUpdate(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	loc, err := cfg.Session.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}
	start, end, err := cfg.Session.Clocks()
	if err != nil {
		return fmt.Errorf("failed to parse session: %w", err)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	polygonClient := polygon.NewClient(polygon.Config{
		APIKey:            cfg.Polygon.APIKey,
		Timeout:           cfg.Polygon.Timeout,
		RequestsPerSecond: cfg.Polygon.RequestsPerSecond,
		Burst:             cfg.Polygon.Burst,
		GroupedCacheTTL:   cfg.Polygon.GroupedCacheTTL,
		Location:          loc,
	})
	if err := polygonClient.Ping(ctx); err != nil {
		return err
	}
	logger.Debug("Polygon API reachable")

	var actions gap.CorporateActions
	if cfg.Scan.CorporateActions {
		actions = polygonClient
	}
	classifier := gap.NewClassifier(gap.Thresholds{
		MinGapPct: cfg.Scan.GapThresholdPct,
		MinPrice:  cfg.Scan.MinOpenPrice,
		MinVolume: cfg.Scan.MinVolume,
	}, actions, cfg.Scan.AmbiguousGapPct, cfg.Scan.SplitLookbackDays)

	normalizer := normalize.NewNormalizer(cfg.Engine.BucketMinutes)
	qualifier := pipeline.NewQualifier(pipeline.QualifierConfig{
		Location:           loc,
		SessionStart:       start,
		SessionEnd:         end,
		GapThresholdPct:    cfg.Scan.GapThresholdPct,
		MinOpenPrice:       cfg.Scan.MinOpenPrice,
		MinPreMarketVolume: cfg.Scan.MinPremarketVolume,
	}, classifier, normalizer)

	cal := session.NewCalendar(cfg.Session.Calendar, loc)
	symbols := gap.NewSymbolFilter(cfg.Symbols.MaxLength, cfg.Symbols.BlockedSuffixes, cfg.Symbols.Blocked)
	scanner := pipeline.NewScanner(polygonClient, polygonClient, cal, symbols, qualifier, pipeline.ScannerConfig{
		GapThresholdPct: cfg.Scan.GapThresholdPct,
		MinOpenPrice:    cfg.Scan.MinOpenPrice,
		MaxConcurrency:  cfg.Polygon.MaxConcurrency,
	})

	var notifier pipeline.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, cfg.Telegram.TopN)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	runner := pipeline.NewRunner(scanner, cal, store, aggregate.NewAggregator(cfg.Engine.GridPoints, start, end), notifier,
		pipeline.RunnerConfig{
			LookbackTradingDays: cfg.Scan.LookbackTradingDays,
			RetentionDays:       cfg.Storage.RetentionDays,
			CachePath:           cfg.Storage.CachePath,
			Windows: aggregate.Options{
				Days:           cfg.Windows.Days,
				Weeks:          cfg.Windows.Weeks,
				Months:         cfg.Windows.Months,
				BackfillMonths: cfg.Windows.BackfillMonths,
				RecentGaps:     cfg.Windows.RecentGaps,
			},
		})

	logger.Info("Starting update (gap >= %.1f%%, open >= $%.2f, pre-market volume >= %.0f, lookback %d trading days)",
		cfg.Scan.GapThresholdPct, cfg.Scan.MinOpenPrice, cfg.Scan.MinPremarketVolume, cfg.Scan.LookbackTradingDays)
	logger.Debug("Curve resolution: %v buckets, %d grid points", normalizer.BucketWidth(), cfg.Engine.GridPoints)

	report, err := runner.Run(ctx, time.Now())
	if err != nil {
		if errors.Is(err, pipeline.ErrNoMarketData) {
			return fmt.Errorf("no data could be fetched, check the API key and plan: %w", err)
		}
		return err
	}
	for _, dateErr := range report.Errors {
		logger.Warn("%v", dateErr)
	}

	logger.Info("Update completed in %v: %d dates scanned, %d already stored, %d new events, %d pruned, %d stored, %d failed dates",
		time.Since(startTime), len(report.Scanned), report.Skipped, report.NewEvents, report.Pruned, report.Stored, len(report.Errors))
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if logger.ParseLevel(cfg.Logging.Level) != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(cfg.Server.Addr(), cfg.Storage.CachePath, cfg.Server.AllowedOrigins)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("Service stopped")
	return nil
}

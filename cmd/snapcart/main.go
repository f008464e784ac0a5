package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"snapcart/internal/browser"
	"snapcart/internal/checkout"
	"snapcart/internal/config"
	"snapcart/internal/ui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	addr := flag.String("addr", "", "Listen address for the input collector (overrides config)")
	headless := flag.Bool("headless", false, "Run the browser headless")
	dryRun := flag.Bool("dry-run", false, "Test mode: stop before the final pay button")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; real settings live in the YAML config.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if v := os.Getenv("SNAPCART_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *headless || os.Getenv("SNAPCART_HEADLESS") == "1" {
		cfg.Headless = true
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *debug {
		cfg.DebugMode = true
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	clock := newClock(cfg, logger)

	runner := func(ctx context.Context, req *checkout.CheckoutRequest, status *checkout.StatusLog) error {
		session, err := browser.NewSession(cfg, logger)
		if err != nil {
			status.Append(checkout.Status{
				Time:     time.Now(),
				State:    checkout.StateFailed,
				Message:  fmt.Sprintf("browser setup failed: %v", err),
				Terminal: true,
				Reason:   checkout.ReasonAutomation,
			})
			return err
		}

		seq := checkout.NewSequencer(cfg, session, clock, logger, status)
		return seq.Run(ctx, req)
	}

	server := ui.NewServer(cfg, logger, clock, runner)

	fmt.Printf("snapcart checkout assistant\n")
	fmt.Printf("Open http://%s in your browser to begin.\n", cfg.ListenAddr)
	if cfg.DryRun {
		fmt.Println("DRY RUN mode: the final pay button will not be clicked.")
	}

	if err := server.Listen(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newClock returns the schedule gate's time source: a Date-header synced
// clock when enabled, the plain system clock otherwise. A failed sync is
// logged and falls back to local time.
func newClock(cfg *config.Config, logger *zap.Logger) checkout.Clock {
	if !cfg.TimeSyncEnabled || len(cfg.TimeSyncServers) == 0 {
		return checkout.SystemClock{}
	}

	ts := checkout.NewTimeSync(cfg.TimeSyncServers)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := ts.Sync(ctx); err != nil {
		logger.Warn("time sync failed, using local clock", zap.Error(err))
	} else {
		logger.Info("clock synchronized", zap.Duration("offset", ts.Offset()))
	}
	return ts
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/app"
	"github.com/woxQAQ/wbg-host/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	guestName := flag.String("guest", "", "Name of the guest to run")
	frames := flag.Int("frames", 0, "Animation frames to run after the entry returns (0 runs until idle)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadHostConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting wbg-host",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	if *guestName == "" {
		logger.Fatal("No guest given; use -guest")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	host, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create host", zap.Error(err))
	}

	result, err := host.Run(ctx, *guestName, *frames)
	if closeErr := host.Close(context.WithoutCancel(ctx)); closeErr != nil {
		logger.Error("Shutdown error", zap.Error(closeErr))
	}
	if err != nil {
		logger.Fatal("Guest failed", zap.String("guest", *guestName), zap.Error(err))
	}

	fmt.Println(result.String())
	logger.Info("Host shutdown complete")
}

// newLogger builds a development logger for debug and a production logger
// at the requested level otherwise.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

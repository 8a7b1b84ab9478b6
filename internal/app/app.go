// Package app wires configuration, the Wasm runtime and the guest manager
// into the host the CLI runs.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/config"
	"github.com/woxQAQ/wbg-host/internal/guest"
	"github.com/woxQAQ/wbg-host/internal/wasm"
)

type App struct {
	cfg         *config.HostConfig
	logger      *zap.Logger
	wasmRuntime *wasm.Runtime
	guests      *guest.Manager
}

// Result is the outcome of running a guest.
type Result struct {
	Guest string
	Value any
	// Frames is the number of animation frames pumped after the entry returned.
	Frames int
}

// String formats the entry's return value.
func (r *Result) String() string {
	return bridge.DebugString(r.Value)
}

func New(ctx context.Context, cfg *config.HostConfig, logger *zap.Logger) (*App, error) {
	// Initialize Wasm runtime.
	wasmConfig := &wasm.RuntimeConfig{
		MemoryPages:      cfg.Wasm.MemoryPages,
		DebugEnabled:     cfg.Wasm.Debug,
		CacheDir:         cfg.Wasm.CacheDir,
		MaxInstances:     cfg.Wasm.MaxInstances,
		ExecutionTimeout: cfg.Wasm.ExecutionTimeoutDuration(),
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	guests := guest.NewManager(cfg, wasmRuntime, logger)
	if err := guests.LoadAll(ctx); err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, fmt.Errorf("failed to load guests: %w", err)
	}

	logger.Info("Host initialized",
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.Int("guests", guests.Registry().Count()),
	)

	return &App{
		cfg:         cfg,
		logger:      logger,
		wasmRuntime: wasmRuntime,
		guests:      guests,
	}, nil
}

// Guests returns the guest manager.
func (a *App) Guests() *guest.Manager {
	return a.guests
}

// Run instantiates the named guest, calls its entry, then pumps the host loop
// for frames animation frames, or until idle when frames is zero.
func (a *App) Run(ctx context.Context, name string, frames int) (*Result, error) {
	instance, err := a.guests.Instantiate(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := instance.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("Failed to close guest", zap.String("guest", name), zap.Error(err))
		}
	}()

	value, err := instance.Run(ctx)
	if err != nil {
		return nil, err
	}

	if frames > 0 {
		err = instance.RunFrames(ctx, frames)
	} else {
		err = instance.Settle(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("guest '%s' failed after its entry returned: %w", name, err)
	}

	a.logger.Info("Guest finished",
		zap.String("guest", name),
		zap.Int("frames", frames),
		zap.Int("gl_contexts", len(instance.Host.Contexts())),
	)

	return &Result{Guest: name, Value: value, Frames: frames}, nil
}

// Close gracefully shuts down the host.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down host")

	if err := a.guests.Shutdown(ctx); err != nil {
		return err
	}

	a.logger.Info("Host shutdown complete")
	return nil
}

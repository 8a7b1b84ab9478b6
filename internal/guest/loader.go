package guest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/wasm"
)

// Loader handles loading guest bundles from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new guest loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "guest-loader")),
	}
}

// LoadBundle loads a single guest bundle from a directory.
func (l *Loader) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	l.logger.Debug("Loading guest", zap.String("dir", dir))

	// Parse manifest
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading guest",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Strings("capabilities", manifest.Capabilities),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.Name, manifest.WasmPath())
	if err != nil {
		return nil, &BundleLoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	bundle := &Bundle{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Guest loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Int("imports", len(compiled.Imports)),
	)

	return bundle, nil
}

// DiscoverBundles scans directories for guest bundles. Each immediate
// subdirectory holding a manifest is one bundle.
func (l *Loader) DiscoverBundles(ctx context.Context, paths []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning guest directory", zap.String("path", basePath))

		// Read subdirectories
		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Guest path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as a guest
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			bundleDir := filepath.Join(basePath, entry.Name())

			bundle, err := l.LoadBundle(ctx, bundleDir)
			if err != nil {
				l.logger.Error("Failed to load guest",
					zap.String("dir", bundleDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			bundles = append(bundles, bundle)
		}
	}

	// If we found some guests but had errors, log warning but continue
	if len(bundles) > 0 && len(errs) > 0 {
		l.logger.Warn("Some guests failed to load",
			zap.Int("loaded", len(bundles)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(bundles) == 0 {
		return nil, &NoBundlesFoundError{Paths: paths}
	}

	return bundles, nil
}

package guest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/config"
	"github.com/woxQAQ/wbg-host/internal/hostenv"
	"github.com/woxQAQ/wbg-host/internal/imports"
	"github.com/woxQAQ/wbg-host/internal/wasm"
)

// Manager manages guest lifecycle.
type Manager struct {
	cfg         *config.HostConfig
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	table       *imports.Table
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new guest manager.
func NewManager(cfg *config.HostConfig, runtime *wasm.Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, logger),
		table:       imports.DefaultTable(),
		logger:      logger.With(zap.String("component", "guest-manager")),
	}
}

// LoadAll discovers and loads all guests from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("guests already loaded")
	}

	m.logger.Info("Loading guests",
		zap.Strings("paths", m.cfg.GuestPaths),
	)

	bundles, err := m.loader.DiscoverBundles(ctx, m.cfg.GuestPaths)
	if err != nil {
		var none *NoBundlesFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No guests found in configured paths",
				zap.Strings("paths", m.cfg.GuestPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, bundle := range bundles {
		if err := m.registry.Register(bundle); err != nil {
			m.logger.Error("Failed to register guest",
				zap.String("name", bundle.Name()),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Guests loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// LoadBundle loads and registers the bundle in dir.
func (m *Manager) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bundle, err := m.loader.LoadBundle(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Register(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// GetBundle retrieves a guest by name.
func (m *Manager) GetBundle(name string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.registry.Get(name)
	if !ok {
		return nil, &BundleNotFoundError{BundleName: name}
	}

	return bundle, nil
}

// FindByCapability returns the guests granted a host capability.
func (m *Manager) FindByCapability(capability string) []*Bundle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.LookupByCapability(capability)
}

// Link binds every import of bundle to a shim. Imports from a module other
// than the manifest's import module fail. All failures are reported in one
// *LinkError.
func (m *Manager) Link(bundle *Bundle) ([]imports.Binding, error) {
	var errs []error
	wanted := make([]imports.Import, 0, len(bundle.Compiled.Imports))
	for _, imp := range bundle.Compiled.Imports {
		if imp.Module != bundle.Manifest.ImportModule {
			errs = append(errs, &imports.ResolveError{
				Import: imp.Module + "." + imp.Name,
				Reason: fmt.Sprintf("guest imports host functions from '%s' only", bundle.Manifest.ImportModule),
			})
			continue
		}
		wanted = append(wanted, imp)
	}

	bindings, err := m.table.Link(wanted, bundle.Manifest.LinkOptions())
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, &LinkError{BundleName: bundle.Name(), Err: errors.Join(errs...)}
	}

	m.logger.Debug("Guest linked",
		zap.String("name", bundle.Name()),
		zap.Int("bindings", len(bindings)),
	)
	return bindings, nil
}

// Instantiate links a guest and creates a session in a fresh host environment.
func (m *Manager) Instantiate(ctx context.Context, name string) (*Instance, error) {
	bundle, err := m.GetBundle(name)
	if err != nil {
		return nil, err
	}

	bindings, err := m.Link(bundle)
	if err != nil {
		return nil, err
	}

	host, err := hostenv.New(hostenv.Config{
		BaseURL:        m.cfg.Host.BaseURL,
		Origin:         m.cfg.Host.Origin,
		FetchTimeout:   m.cfg.Host.FetchTimeoutDuration(),
		ViewportWidth:  m.cfg.Host.ViewportWidth,
		ViewportHeight: m.cfg.Host.ViewportHeight,
		FrameInterval:  m.cfg.Host.FrameInterval(),
		MaxBodyBytes:   m.cfg.Host.MaxBodyBytes,
	}, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create host environment: %w", err)
	}

	logger := m.logger.With(zap.String("guest", name))
	env := &imports.Env{
		Bridge: bridge.New(bridge.Config{Heap: bridge.HeapConfig{
			StackSize:       m.cfg.Bridge.StackSize,
			InitialCapacity: m.cfg.Bridge.InitialHeap,
		}}, logger),
		Host:          host,
		PromiseInvoke: bundle.Manifest.PromiseInvoke,
		Logger:        logger,
	}

	exports := bundle.Manifest.Exports
	session, err := m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: bundle.Compiled.Name,
		Bindings:   bindings,
		Env:        env,
		Exports: wasm.GuestExports{
			Malloc:          exports.Malloc,
			Realloc:         exports.Realloc,
			ExnStore:        exports.ExnStore,
			DestructorTable: exports.DestructorTable,
			Start:           bundle.Manifest.Start,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Instance{
		Bundle:  bundle,
		Session: session,
		Host:    host,
	}, nil
}

// Shutdown gracefully shuts down all guests.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down guest manager")

	// Runtime close handles session cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Guest manager shutdown complete")
	return nil
}

// Registry returns the guest registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether guests have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

package wasm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/imports"
)

// Runtime manages the wazero runtime lifecycle.
// Compiled code is shared through one compilation cache; every guest session
// gets its own wazero.Runtime so it can carry its own import module.
type Runtime struct {
	// Shared compilation cache (in-memory or on disk).
	cache wazero.CompilationCache

	// Runtime used to validate modules and read their import lists.
	compiler wazero.Runtime

	// Compiled module cache (key: module name/path -> value: *CompiledModule)
	modules sync.Map

	// Active sessions (for cleanup on shutdown)
	// key: session ID -> value: *Session
	sessions sync.Map
	active   atomic.Int64

	// Configuration
	config *RuntimeConfig

	// Logger
	logger *zap.Logger

	// Shutdown management
	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limit for guest modules (in pages, 64KB each)
	// Default: 256 pages = 16MB max memory per module
	MemoryPages uint32

	// Keep DWARF-based stack traces in guest errors
	DebugEnabled bool

	// Compilation cache directory (for persistent caching)
	// If empty, uses in-memory caching only
	CacheDir string

	// Maximum number of concurrent sessions
	MaxInstances int

	// Upper bound for a single guest export call. Zero disables the limit.
	ExecutionTimeout time.Duration
}

// CompiledModule wraps a wazero.CompiledModule with metadata.
type CompiledModule struct {
	// wazero compiled module
	Module wazero.CompiledModule

	// Module metadata
	Name      string
	Source    string // File path or identifier
	SizeBytes int64

	// Compilation timestamp
	CompiledAt int64

	// Function imports the guest declares, in declaration order.
	Imports []imports.Import

	// Wasm bytes, recompiled (through the cache) by each session runtime.
	bytes []byte
}

// HasExport reports whether the module exports a function named name.
func (m *CompiledModule) HasExport(name string) bool {
	if m.Module == nil {
		return false
	}
	_, ok := m.Module.ExportedFunctions()[name]
	return ok
}

// NewRuntime creates and initializes the shared compilation cache.
// This should be called once during application startup.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	// Validate config
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	cache := wazero.NewCompilationCache()
	if config.CacheDir != "" {
		dirCache, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, &CacheError{Dir: config.CacheDir, Err: err}
		}
		cache = dirCache
	}

	runtime := &Runtime{
		cache:  cache,
		config: config,
		logger: logger.With(zap.String("component", "wasm-runtime")),
		closed: make(chan struct{}),
	}
	runtime.compiler = wazero.NewRuntimeWithConfig(ctx, runtime.runtimeConfig())

	logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
		zap.Duration("execution_timeout", config.ExecutionTimeout),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:      256, // 16MB
		DebugEnabled:     false,
		CacheDir:         "",
		MaxInstances:     100,
		ExecutionTimeout: 30 * time.Second,
	}
}

// runtimeConfig is the wazero configuration shared by every runtime created here.
func (r *Runtime) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().
		WithCompilationCache(r.cache).
		WithCloseOnContextDone(true).
		WithDebugInfoEnabled(r.config.DebugEnabled)
	if r.config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(r.config.MemoryPages)
	}
	return rc
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down Wasm runtime")

		// Close all active sessions first
		r.sessions.Range(func(key, value any) bool {
			if s, ok := value.(*Session); ok {
				if closeErr := s.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close session",
						zap.String("session_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			return true
		})

		err = errors.Join(r.compiler.Close(ctx), r.cache.Close(ctx))

		close(r.closed)
		r.logger.Info("Wasm runtime shutdown complete")
	})

	return err
}

// GetCompiledModule retrieves a compiled module from cache.
func (r *Runtime) GetCompiledModule(name string) (*CompiledModule, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledModule); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledModule stores a compiled module in cache.
func (r *Runtime) StoreCompiledModule(module *CompiledModule) {
	r.modules.Store(module.Name, module)
}

// GetSession retrieves an active session.
func (r *Runtime) GetSession(id string) (*Session, bool) {
	if val, ok := r.sessions.Load(id); ok {
		return val.(*Session), true
	}
	return nil, false
}

// ActiveSessions returns the number of open sessions.
func (r *Runtime) ActiveSessions() int {
	return int(r.active.Load())
}

func (r *Runtime) storeSession(s *Session) {
	r.sessions.Store(s.ID, s)
	r.active.Add(1)
}

func (r *Runtime) deleteSession(id string) {
	if _, loaded := r.sessions.LoadAndDelete(id); loaded {
		r.active.Add(-1)
	}
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/imports"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// InstanceManager creates and manages guest sessions.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// GuestExports names the guest exports the host relies on.
type GuestExports struct {
	Malloc  string
	Realloc string

	// ExnStore is the guest's exception slot setter. Optional.
	ExnStore string

	// DestructorTable is the exported function table holding closure
	// destructors. Optional when the guest creates no closures.
	DestructorTable string

	// Start is called once after instantiation. Optional.
	Start string
}

// InstanceConfig holds configuration for creating sessions.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string

	// Resolved imports of the module.
	Bindings []imports.Binding

	// Shim environment. Guest is filled in by Instantiate.
	Env *imports.Env

	Exports GuestExports
}

// Session is one instantiated guest with its own runtime, host modules and bridge.
type Session struct {
	ID        string
	Name      string
	CreatedAt int64

	runtime *Runtime
	rt      wazero.Runtime
	module  api.Module
	tables  api.Module
	env     *imports.Env

	malloc   api.Function
	realloc  api.Function
	exnStore api.Function

	timeout time.Duration
	logger  *zap.Logger

	closeOnce sync.Once
	closed    bool
}

// Instantiate creates a new session from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Session, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}
	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.ActiveSessions() >= limit {
		return nil, &InstanceLimitError{Max: limit}
	}
	if config.Env == nil || config.Env.Bridge == nil {
		return nil, fmt.Errorf("instance of '%s' has no bridge", config.ModuleName)
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
		zap.Int("imports", len(config.Bindings)),
	)

	fail := func(rt wazero.Runtime, err error) (*Session, error) {
		if rt != nil {
			_ = rt.Close(ctx)
		}
		return nil, &InstantiationError{ModuleName: config.ModuleName, InstanceID: instanceID, Err: err}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, m.runtime.runtimeConfig())

	guestCompiled, err := rt.CompileModule(ctx, compiled.bytes)
	if err != nil {
		return fail(rt, err)
	}

	s := &Session{
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		runtime:   m.runtime,
		rt:        rt,
		env:       config.Env,
		timeout:   m.runtime.config.ExecutionTimeout,
		logger:    m.logger.With(zap.String("instance_id", instanceID)),
	}
	config.Env.Guest = s
	if config.Env.Logger == nil {
		config.Env.Logger = s.logger
	}

	if err := instantiateHostModules(ctx, rt, config.Bindings, config.Env, s.logger); err != nil {
		return fail(rt, fmt.Errorf("failed to instantiate host modules: %w", err))
	}

	// Start functions run only after the bridge is attached.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := rt.InstantiateModule(ctx, guestCompiled, moduleConfig)
	if err != nil {
		return fail(rt, err)
	}
	s.module = module

	if module.Memory() == nil {
		return fail(rt, errors.New("guest exports no memory"))
	}
	if s.malloc = module.ExportedFunction(config.Exports.Malloc); s.malloc == nil {
		return fail(rt, &FunctionNotFoundError{ModuleName: config.ModuleName, FunctionName: config.Exports.Malloc})
	}
	if config.Exports.Realloc != "" {
		s.realloc = module.ExportedFunction(config.Exports.Realloc)
	}
	if config.Exports.ExnStore != "" {
		s.exnStore = module.ExportedFunction(config.Exports.ExnStore)
	}

	if table := config.Exports.DestructorTable; table != "" {
		helper, err := rt.CompileModule(ctx, tableCallerModule(instanceID, table))
		if err != nil {
			return fail(rt, fmt.Errorf("failed to compile table caller: %w", err))
		}
		s.tables, err = rt.InstantiateModule(ctx, helper, wazero.NewModuleConfig().WithName(instanceID+tableCallSfx))
		if err != nil {
			return fail(rt, fmt.Errorf("guest table '%s': %w", table, err))
		}
	}

	config.Env.Bridge.Attach(NewMemory(module), s.bridgeGuest())

	m.runtime.storeSession(s)

	if start := config.Exports.Start; start != "" {
		if _, err := s.Call(ctx, start); err != nil {
			_ = s.Close(ctx)
			return nil, &InstantiationError{ModuleName: config.ModuleName, InstanceID: instanceID, Err: err}
		}
	}

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Bool("exception_slot", s.exnStore != nil),
		zap.Bool("destructor_table", s.tables != nil),
	)

	return s, nil
}

// Bridge returns the session's bridge.
func (s *Session) Bridge() *bridge.Bridge { return s.env.Bridge }

// Memory returns the guest memory.
func (s *Session) Memory() *Memory { return NewMemory(s.module) }

// Run calls entry, which returns a handle, and takes the value behind it.
// An entry without results yields undefined.
func (s *Session) Run(ctx context.Context, entry string) (any, error) {
	results, err := s.Call(ctx, entry)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return protocol.Undefined{}, nil
	}
	return s.env.Bridge.Heap().Take(bridge.Handle(api.DecodeU32(results[0])))
}

// Call invokes a guest export from the host. A failure recorded in the
// bridge's exception slot during the call is returned as a *bridge.GuestError.
func (s *Session) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	results, err := s.CallExport(ctx, name, params...)
	if err != nil {
		return nil, err
	}
	if v, ok := s.env.Bridge.TakeException(); ok {
		return results, &bridge.GuestError{Value: v}
	}
	return results, nil
}

// CallExport invokes a guest export under the execution timeout. Host
// capabilities use it to re-enter the guest.
func (s *Session) CallExport(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if s.closed {
		return nil, &SessionClosedError{InstanceID: s.ID}
	}

	fn := s.module.ExportedFunction(name)
	if fn == nil {
		return nil, &FunctionNotFoundError{ModuleName: s.Name, FunctionName: name}
	}
	return s.invoke(ctx, name, fn, params...)
}

func (s *Session) invoke(ctx context.Context, name string, fn api.Function, params ...uint64) ([]uint64, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err := fn.Call(callCtx, params...)
	if err != nil {
		return nil, s.callError(callCtx, name, err)
	}
	return results, nil
}

func (s *Session) callError(ctx context.Context, name string, err error) error {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return err
	}

	var exitErr *sys.ExitError
	deadline := errors.As(err, &exitErr) && exitErr.ExitCode() == sys.ExitCodeDeadlineExceeded
	if deadline || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("Guest export timed out",
			zap.String("export", name),
			zap.Duration("timeout", s.timeout),
		)
		return &TimeoutError{Export: name, Duration: s.timeout}
	}
	return &ExecutionError{InstanceID: s.ID, Export: name, Err: err}
}

// Close closes the session's runtime and releases its modules.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		s.runtime.deleteSession(s.ID)
		err = s.rt.Close(ctx)
		s.logger.Debug("Session closed")
	})
	return err
}

// bridgeGuest returns the guest export adapter, implementing the optional
// bridge interfaces only when the guest exports them.
func (s *Session) bridgeGuest() bridge.Guest {
	g := &guestExports{s: s}
	switch {
	case s.realloc != nil && s.exnStore != nil:
		return &struct {
			*guestExports
			reallocExport
			exnStoreExport
		}{g, reallocExport{g}, exnStoreExport{g}}
	case s.realloc != nil:
		return &struct {
			*guestExports
			reallocExport
		}{g, reallocExport{g}}
	case s.exnStore != nil:
		return &struct {
			*guestExports
			exnStoreExport
		}{g, exnStoreExport{g}}
	}
	return g
}

type guestExports struct {
	s *Session
}

func (g *guestExports) Malloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := g.s.invoke(ctx, "malloc", g.s.malloc, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

func (g *guestExports) CallDestructor(ctx context.Context, index, a, b uint32) error {
	if g.s.tables == nil {
		return fmt.Errorf("guest has no destructor table")
	}
	fn := g.s.tables.ExportedFunction(tableCallFn)
	_, err := g.s.invoke(ctx, "destructor", fn, api.EncodeU32(index), api.EncodeU32(a), api.EncodeU32(b))
	return err
}

type reallocExport struct {
	g *guestExports
}

func (r reallocExport) Realloc(ctx context.Context, ptr, oldSize, newSize uint32) (uint32, error) {
	res, err := r.g.s.invoke(ctx, "realloc", r.g.s.realloc,
		api.EncodeU32(ptr), api.EncodeU32(oldSize), api.EncodeU32(newSize))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

type exnStoreExport struct {
	g *guestExports
}

func (e exnStoreExport) ExnStore(ctx context.Context, h bridge.Handle) error {
	_, err := e.g.s.invoke(ctx, "exn_store", e.g.s.exnStore, api.EncodeU32(uint32(h)))
	return err
}

var (
	_ bridge.Guest        = (*guestExports)(nil)
	_ imports.GuestCaller = (*Session)(nil)
)

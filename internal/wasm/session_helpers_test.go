package wasm

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/imports"
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmtest"
)

var testExports = GuestExports{
	Malloc:          wasmtest.Malloc,
	DestructorTable: wasmtest.DestructorTable,
}

func zapLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func newTestRuntime(t *testing.T, config *RuntimeConfig) *Runtime {
	t.Helper()
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, zaptest.NewLogger(t), config)
	if err != nil {
		t.Fatalf("NewRuntime() failed: %v", err)
	}
	t.Cleanup(func() { runtime.Close(ctx) })
	return runtime
}

// newTestSession loads the test guest into runtime and instantiates it.
func newTestSession(t *testing.T, runtime *Runtime, exports GuestExports) (*Session, error) {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	compiled, err := NewModuleLoader(runtime, logger).LoadModuleFromMemory(ctx, "test-guest", wasmtest.Guest())
	if err != nil {
		t.Fatalf("LoadModuleFromMemory() failed: %v", err)
	}

	bindings, err := imports.DefaultTable().Link(compiled.Imports, imports.LinkOptions{})
	if err != nil {
		t.Fatalf("Link() failed: %v", err)
	}

	env := &imports.Env{
		Bridge: bridge.New(bridge.Config{}, zap.NewNop()),
		Logger: logger,
	}
	return NewInstanceManager(runtime, logger).Instantiate(ctx, &InstanceConfig{
		ModuleName: "test-guest",
		Bindings:   bindings,
		Env:        env,
		Exports:    exports,
	})
}

func mustSession(t *testing.T, runtime *Runtime) *Session {
	t.Helper()
	s, err := newTestSession(t, runtime, testExports)
	if err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

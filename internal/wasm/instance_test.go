package wasm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/imports"
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmtest"
)

func TestLoadModuleRecordsImports(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	ctx := context.Background()

	compiled, err := NewModuleLoader(runtime, zapLogger(t)).LoadModuleFromMemory(ctx, "test-guest", wasmtest.Guest())
	if err != nil {
		t.Fatalf("LoadModuleFromMemory() failed: %v", err)
	}

	want := []imports.Import{
		{Module: "wbg", Name: "__wbindgen_string_new", Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		{Module: "wbg", Name: "__wbindgen_throw", Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}},
	}
	if diff := cmp.Diff(want, compiled.Imports, cmp.Comparer(func(a, b []api.ValueType) bool {
		return string(a) == string(b)
	})); diff != "" {
		t.Errorf("Imports mismatch (-want +got):\n%s", diff)
	}

	if !compiled.HasExport("run") {
		t.Error("HasExport(run) = false, want true")
	}
	if compiled.HasExport("memory") {
		t.Error("HasExport(memory) = true, want false for a non-function export")
	}
}

func TestSessionRun(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)

	got, err := s.Run(context.Background(), "run")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Run() = %v, want hello", got)
	}
	if n := s.Bridge().Heap().Len(); n != 0 {
		t.Errorf("heap holds %d objects after Run, want 0", n)
	}
}

func TestSessionMallocThroughBridge(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)
	ctx := context.Background()

	ptr, n, err := s.Bridge().PassString(ctx, "abc")
	if err != nil {
		t.Fatalf("PassString() failed: %v", err)
	}
	if ptr != 2048 || n != 3 {
		t.Errorf("PassString() = (%d, %d), want (2048, 3)", ptr, n)
	}

	got, err := s.Memory().ReadString(ptr, n)
	if err != nil {
		t.Fatalf("ReadString() failed: %v", err)
	}
	if got != "abc" {
		t.Errorf("guest memory holds %q, want abc", got)
	}
}

func TestSessionDestructorTable(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)
	ctx := context.Background()

	var c *bridge.Closure
	c = s.Bridge().WrapClosure(3, 4, 0, func(ctx context.Context, a, b uint32, args ...any) (any, error) {
		if c.Drop() {
			t.Error("Drop() inside a call = true, want false")
		}
		return nil, nil
	})
	if _, err := c.Call(ctx, nil); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if c.Active() {
		t.Fatal("closure still active after dropping itself")
	}

	data, err := s.Memory().ReadBytes(8, 4)
	if err != nil {
		t.Fatalf("ReadBytes() failed: %v", err)
	}
	if got := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24; got != 7 {
		t.Errorf("destructor stored %d, want 7", got)
	}
}

func TestSessionGuestThrow(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)

	_, err := s.Call(context.Background(), "fail")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Call(fail) error = %v, want *ExecutionError", err)
	}
	if execErr.Export != "fail" {
		t.Errorf("Export = %s, want fail", execErr.Export)
	}

	var guestErr *bridge.GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("Call(fail) error = %v, want it to wrap *bridge.GuestError", err)
	}
}

func TestSessionTimeout(t *testing.T) {
	runtime := newTestRuntime(t, &RuntimeConfig{
		MemoryPages:      16,
		MaxInstances:     4,
		ExecutionTimeout: 50 * time.Millisecond,
	})
	s := mustSession(t, runtime)

	_, err := s.Call(context.Background(), "spin")
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Call(spin) error = %v, want *TimeoutError", err)
	}
	if timeout.Export != "spin" || timeout.Duration != 50*time.Millisecond {
		t.Errorf("TimeoutError = %+v", timeout)
	}
}

func TestSessionMissingExport(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)

	_, err := s.Call(context.Background(), "nope")
	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Call(nope) error = %v, want *FunctionNotFoundError", err)
	}
}

func TestInstantiateMissingMalloc(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	_, err := newTestSession(t, runtime, GuestExports{Malloc: "nope"})
	var instErr *InstantiationError
	if !errors.As(err, &instErr) {
		t.Fatalf("Instantiate() error = %v, want *InstantiationError", err)
	}
	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) || notFound.FunctionName != "nope" {
		t.Errorf("Instantiate() error = %v, want it to wrap a missing 'nope'", err)
	}
	if n := runtime.ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d after a failed instantiation, want 0", n)
	}
}

func TestInstantiateUnknownModule(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	_, err := NewInstanceManager(runtime, zapLogger(t)).Instantiate(context.Background(), &InstanceConfig{
		ModuleName: "missing",
	})
	var notFound *ModuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Instantiate() error = %v, want *ModuleNotFoundError", err)
	}
}

func TestInstanceLimit(t *testing.T) {
	runtime := newTestRuntime(t, &RuntimeConfig{MaxInstances: 1})
	mustSession(t, runtime)

	_, err := newTestSession(t, runtime, testExports)
	var limit *InstanceLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("second Instantiate() error = %v, want *InstanceLimitError", err)
	}
}

func TestSessionClose(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)
	ctx := context.Background()

	if _, ok := runtime.GetSession(s.ID); !ok {
		t.Fatal("GetSession() did not find the new session")
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if n := runtime.ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d, want 0", n)
	}

	_, err := s.Call(ctx, "run")
	var closed *SessionClosedError
	if !errors.As(err, &closed) {
		t.Errorf("Call() after Close error = %v, want *SessionClosedError", err)
	}
}

func TestRuntimeCloseClosesSessions(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	s := mustSession(t, runtime)
	ctx := context.Background()

	if err := runtime.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if n := runtime.ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d, want 0", n)
	}
	if _, err := s.Call(ctx, "run"); err == nil {
		t.Error("Call() on a session of a closed runtime succeeded")
	}
}

func TestTableCallerModuleCompiles(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	// Imports resolve at instantiation, so the helper compiles on its own.
	if _, err := runtime.compiler.CompileModule(context.Background(), tableCallerModule("guest", "table")); err != nil {
		t.Fatalf("CompileModule(table caller) failed: %v", err)
	}
}

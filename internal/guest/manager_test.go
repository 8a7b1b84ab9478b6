package guest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/config"
	"github.com/woxQAQ/wbg-host/internal/imports"
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmenc"
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmtest"
)

func testConfig(paths ...string) *config.HostConfig {
	return &config.HostConfig{
		GuestPaths: paths,
		Bridge:     config.BridgeConfig{StackSize: 32, InitialHeap: 16},
		Host: config.EnvConfig{
			BaseURL:        "https://ships.example/app/",
			ViewportWidth:  320,
			ViewportHeight: 200,
		},
	}
}

func newTestManager(t *testing.T, paths ...string) *Manager {
	t.Helper()
	return NewManager(testConfig(paths...), newTestRuntime(t), zaptest.NewLogger(t))
}

// foreignImportGuest imports one function from a module other than wbg and
// one unknown wbg function.
func foreignImportGuest() []byte {
	out := wasmenc.Header()
	out = append(out, wasmenc.Section(wasmenc.SectionType, wasmenc.FuncType(2, 1))...)
	out = append(out, wasmenc.Section(wasmenc.SectionImport,
		wasmenc.Import("env", "__wbindgen_string_new", wasmenc.ExternFunc, 0),
		wasmenc.Import("wbg", "__wbg_teleport_0123456789abcdef", wasmenc.ExternFunc, 0),
	)...)
	return out
}

func TestManager_NewManager(t *testing.T) {
	manager := newTestManager(t, "/tmp/guests")

	if manager == nil {
		t.Fatal("NewManager() returned nil")
	}

	if manager.IsLoaded() {
		t.Error("Manager should not be loaded initially")
	}
}

func TestManager_LoadAll(t *testing.T) {
	root := t.TempDir()
	writeHelloBundle(t, root)

	manager := newTestManager(t, root)
	ctx := context.Background()

	if err := manager.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
	if manager.Registry().Count() != 1 {
		t.Errorf("expected 1 guest, got %d", manager.Registry().Count())
	}
	if got := manager.FindByCapability("timing"); len(got) != 1 {
		t.Errorf("expected 1 guest with timing, got %d", len(got))
	}

	if err := manager.LoadAll(ctx); err == nil {
		t.Error("second LoadAll() should fail")
	}
}

func TestManager_LoadAll_NoGuests(t *testing.T) {
	manager := newTestManager(t, t.TempDir())

	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() with no guests should succeed, got %v", err)
	}
	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
}

func TestManager_GetBundle_NotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.GetBundle("nonexistent")
	var notFound *BundleNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected BundleNotFoundError, got %v", err)
	}

	_, err = manager.Instantiate(context.Background(), "nonexistent")
	if !errors.As(err, &notFound) {
		t.Errorf("expected BundleNotFoundError from Instantiate, got %v", err)
	}
}

func TestManager_InstantiateAndRun(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.LoadBundle(ctx, writeHelloBundle(t, t.TempDir())); err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}

	instance, err := manager.Instantiate(ctx, "hello")
	if err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}
	defer instance.Close(ctx)

	got, err := instance.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Run() = %v, want hello", got)
	}
	if out := bridge.DebugString(got); out != `"hello"` {
		t.Errorf("DebugString() = %s, want \"hello\"", out)
	}

	if err := instance.RunFrames(ctx, 2); err != nil {
		t.Errorf("RunFrames() failed: %v", err)
	}
	if err := instance.Settle(ctx); err != nil {
		t.Errorf("Settle() failed: %v", err)
	}
}

func TestManager_InstancesAreIsolated(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.LoadBundle(ctx, writeHelloBundle(t, t.TempDir())); err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}

	first, err := manager.Instantiate(ctx, "hello")
	if err != nil {
		t.Fatalf("first Instantiate() failed: %v", err)
	}
	defer first.Close(ctx)
	second, err := manager.Instantiate(ctx, "hello")
	if err != nil {
		t.Fatalf("second Instantiate() failed: %v", err)
	}
	defer second.Close(ctx)

	if first.Session.ID == second.Session.ID {
		t.Error("instances share a session ID")
	}
	if first.Host == second.Host || first.Session.Bridge() == second.Session.Bridge() {
		t.Error("instances share host state")
	}
}

func TestManager_RunWithoutEntry(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	manifest := strings.Replace(helloManifest, "entry: run\n", "", 1)
	bundleDir := writeBundle(t, t.TempDir(), "hello", manifest, wasmtest.Guest())
	if _, err := manager.LoadBundle(ctx, bundleDir); err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}

	instance, err := manager.Instantiate(ctx, "hello")
	if err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}
	defer instance.Close(ctx)

	_, err = instance.Run(ctx)
	var noEntry *NoEntryError
	if !errors.As(err, &noEntry) {
		t.Errorf("expected NoEntryError, got %v", err)
	}
}

func TestManager_LinkErrors(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	manifest := strings.Replace(helloManifest, "name: hello", "name: foreign", 1)
	bundle, err := manager.LoadBundle(ctx, writeBundle(t, t.TempDir(), "foreign", manifest, foreignImportGuest()))
	if err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}

	_, err = manager.Link(bundle)
	var linkErr *LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("expected LinkError, got %v", err)
	}
	if linkErr.BundleName != "foreign" {
		t.Errorf("expected bundle 'foreign', got '%s'", linkErr.BundleName)
	}

	var resolveErr *imports.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Errorf("expected the link error to wrap a ResolveError, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"env.__wbindgen_string_new", "__wbg_teleport_0123456789abcdef"} {
		if !strings.Contains(msg, want) {
			t.Errorf("link error %q does not mention %s", msg, want)
		}
	}

	if _, err := manager.Instantiate(ctx, "foreign"); !errors.As(err, &linkErr) {
		t.Errorf("expected Instantiate() to fail with LinkError, got %v", err)
	}
}

func TestManager_Shutdown(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.LoadBundle(ctx, writeHelloBundle(t, t.TempDir())); err != nil {
		t.Fatalf("LoadBundle() failed: %v", err)
	}
	instance, err := manager.Instantiate(ctx, "hello")
	if err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if _, err := instance.Run(ctx); err == nil {
		t.Error("Run() after Shutdown should fail")
	}
}

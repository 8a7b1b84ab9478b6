package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadHostConfigDefaults(t *testing.T) {
	cfg, err := LoadHostConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	want := &HostConfig{
		GuestPaths: []string{"./guests"},
		LogLevel:   "info",
		Wasm: WasmConfig{
			MemoryPages:      256,
			MaxInstances:     100,
			ExecutionTimeout: 30,
		},
		Bridge: BridgeConfig{
			StackSize:   32,
			InitialHeap: 128,
		},
		Host: EnvConfig{
			FetchTimeout:    10,
			ViewportWidth:   1280,
			ViewportHeight:  720,
			FrameIntervalMs: 16,
			MaxBodyBytes:    64 << 20,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Default config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadHostConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wbg-host.yaml")

	configContent := `
log_level: debug
guest_paths:
  - ./demo
  - /opt/guests
wasm:
  memory_pages: 512
  execution_timeout: 5
host:
  base_url: https://ships.example/app/
  frame_interval_ms: 0
`
	if err := os.WriteFile(path, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadHostConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s, want debug", cfg.LogLevel)
	}
	if diff := cmp.Diff([]string{"./demo", "/opt/guests"}, cfg.GuestPaths); diff != "" {
		t.Errorf("Guest paths mismatch (-want +got):\n%s", diff)
	}
	if cfg.Wasm.MemoryPages != 512 {
		t.Errorf("Memory pages mismatch: got %d, want 512", cfg.Wasm.MemoryPages)
	}
	if got := cfg.Wasm.ExecutionTimeoutDuration(); got != 5*time.Second {
		t.Errorf("Execution timeout mismatch: got %v, want 5s", got)
	}
	if cfg.Wasm.MaxInstances != 100 {
		t.Errorf("Max instances should keep its default: got %d", cfg.Wasm.MaxInstances)
	}
	if cfg.Host.BaseURL != "https://ships.example/app/" {
		t.Errorf("Base URL mismatch: got %s", cfg.Host.BaseURL)
	}
	if got := cfg.Host.FrameInterval(); got != 0 {
		t.Errorf("Frame interval mismatch: got %v, want 0", got)
	}
	if got := cfg.Host.FetchTimeoutDuration(); got != 10*time.Second {
		t.Errorf("Fetch timeout mismatch: got %v, want 10s", got)
	}
}

func TestLoadHostConfigEnvOverride(t *testing.T) {
	t.Setenv("WBG_LOG_LEVEL", "warn")
	t.Setenv("WBG_WASM_MAX_INSTANCES", "7")
	t.Setenv("WBG_HOST_VIEWPORT_WIDTH", "640")

	cfg, err := LoadHostConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("Log level mismatch: got %s, want warn", cfg.LogLevel)
	}
	if cfg.Wasm.MaxInstances != 7 {
		t.Errorf("Max instances mismatch: got %d, want 7", cfg.Wasm.MaxInstances)
	}
	if cfg.Host.ViewportWidth != 640 {
		t.Errorf("Viewport width mismatch: got %d, want 640", cfg.Host.ViewportWidth)
	}
}

func TestLoadHostConfigMissingFile(t *testing.T) {
	if _, err := LoadHostConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Loading a missing config file succeeded")
	}
}

func TestLoadHostConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("wasm: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadHostConfig(path); err == nil {
		t.Error("Loading malformed YAML succeeded")
	}
}

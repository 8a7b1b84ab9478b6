package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WBG_WASM_MEMORY_PAGES.
const EnvPrefix = "WBG"

type HostConfig struct {
	GuestPaths []string     `mapstructure:"guest_paths"`
	LogLevel   string       `mapstructure:"log_level"`
	Wasm       WasmConfig   `mapstructure:"wasm"`
	Bridge     BridgeConfig `mapstructure:"bridge"`
	Host       EnvConfig    `mapstructure:"host"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Keep DWARF stack traces in guest errors.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent sessions.
	MaxInstances int `mapstructure:"max_instances"`
	// Guest export execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// BridgeConfig holds handle table layout.
type BridgeConfig struct {
	// Borrow stack slots; wasm-bindgen guests are built for 32.
	StackSize int `mapstructure:"stack_size"`
	// Initial capacity of the durable handle range.
	InitialHeap int `mapstructure:"initial_heap"`
}

// EnvConfig holds headless host environment settings.
type EnvConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Origin  string `mapstructure:"origin"`
	// Fetch and image load timeout (seconds).
	FetchTimeout    int `mapstructure:"fetch_timeout"`
	ViewportWidth   int `mapstructure:"viewport_width"`
	ViewportHeight  int `mapstructure:"viewport_height"`
	FrameIntervalMs int `mapstructure:"frame_interval_ms"`
	// Largest fetch or image body buffered (bytes).
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// ExecutionTimeoutDuration returns the execution timeout as a duration.
func (c WasmConfig) ExecutionTimeoutDuration() time.Duration {
	return time.Duration(c.ExecutionTimeout) * time.Second
}

// FetchTimeoutDuration returns the fetch timeout as a duration.
func (c EnvConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// FrameInterval returns the animation frame pacing.
func (c EnvConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("guest_paths", []string{"./guests"})
	v.SetDefault("log_level", "info")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)

	// Bridge defaults
	v.SetDefault("bridge.stack_size", 32)
	v.SetDefault("bridge.initial_heap", 128)

	// Host environment defaults
	v.SetDefault("host.base_url", "")
	v.SetDefault("host.origin", "")
	v.SetDefault("host.fetch_timeout", 10)
	v.SetDefault("host.viewport_width", 1280)
	v.SetDefault("host.viewport_height", 720)
	v.SetDefault("host.frame_interval_ms", 16)
	v.SetDefault("host.max_body_bytes", 64<<20)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

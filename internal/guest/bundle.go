// Package guest loads guest bundles: a wasm-bindgen module plus a manifest
// describing its exports, closures and granted host capabilities.
package guest

import (
	"slices"
	"time"

	"github.com/woxQAQ/wbg-host/internal/wasm"
)

// Bundle represents a loaded guest with its manifest and compiled Wasm module.
type Bundle struct {
	// Manifest is the parsed guest metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the guest was loaded
	LoadedAt time.Time
}

// Name returns the guest name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Version returns the guest version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Capabilities returns the host capabilities granted to this guest.
func (b *Bundle) Capabilities() []string {
	return b.Manifest.Capabilities
}

// HasCapability checks if the guest is granted a host capability.
func (b *Bundle) HasCapability(capability string) bool {
	return slices.Contains(b.Manifest.Capabilities, capability)
}

package guest

import (
	"fmt"
)

// ManifestNotFoundError occurs when manifest.yaml is not found in a directory.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml cannot be parsed as valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when manifest.yaml fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("manifest validation failed at '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the Wasm file referenced in manifest doesn't exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("Wasm file '%s' not found (referenced in manifest '%s')",
		e.WasmFile, e.ManifestPath)
}

// BundleLoadError occurs when a guest bundle fails to load.
type BundleLoadError struct {
	BundleName string
	Err        error
}

func (e *BundleLoadError) Error() string {
	return fmt.Sprintf("failed to load guest '%s': %v", e.BundleName, e.Err)
}

func (e *BundleLoadError) Unwrap() error {
	return e.Err
}

// LinkError occurs when the imports of a guest cannot all be resolved.
// Err joins one error per failing import.
type LinkError struct {
	BundleName string
	Err        error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link guest '%s': %v", e.BundleName, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// BundleNotFoundError occurs when a guest is not found in the registry.
type BundleNotFoundError struct {
	BundleName string
}

func (e *BundleNotFoundError) Error() string {
	return fmt.Sprintf("guest '%s' not found", e.BundleName)
}

// BundleAlreadyRegisteredError occurs when attempting to register a duplicate guest.
type BundleAlreadyRegisteredError struct {
	BundleName string
}

func (e *BundleAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("guest '%s' is already registered", e.BundleName)
}

// NoBundlesFoundError occurs when no guests are found in the configured paths.
type NoBundlesFoundError struct {
	Paths []string
}

func (e *NoBundlesFoundError) Error() string {
	return fmt.Sprintf("no guests found in paths: %v", e.Paths)
}

// NoEntryError occurs when running a guest whose manifest names no entry export.
type NoEntryError struct {
	BundleName string
}

func (e *NoEntryError) Error() string {
	return fmt.Sprintf("guest '%s' has no entry export", e.BundleName)
}

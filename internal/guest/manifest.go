package guest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/internal/imports"
)

// Manifest represents the guest manifest.yaml structure.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Wasm        WasmConfig `yaml:"wasm"`

	// ImportModule is the module name the guest imports host functions from.
	ImportModule string `yaml:"import_module"`

	// Entry is the export Run calls; it returns a handle. Optional.
	Entry string `yaml:"entry"`

	// Start is called once after instantiation. Optional.
	Start string `yaml:"start"`

	Exports      ExportsConfig     `yaml:"exports"`
	Capabilities []string          `yaml:"capabilities"`
	Aliases      map[string]string `yaml:"aliases"`
	Closures     []ClosureConfig   `yaml:"closures"`

	// PromiseInvoke is the export running promise executors.
	PromiseInvoke string `yaml:"promise_invoke"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ExportsConfig names the guest's runtime exports.
type ExportsConfig struct {
	Malloc          string `yaml:"malloc"`
	Realloc         string `yaml:"realloc"`
	ExnStore        string `yaml:"exn_store"`
	DestructorTable string `yaml:"destructor_table"`
}

// ClosureConfig describes one closure wrapper import.
type ClosureConfig struct {
	Import              string `yaml:"import"`
	imports.ClosureSpec `yaml:",inline"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.applyDefaults()

	// Validate manifest
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.ImportModule == "" {
		m.ImportModule = apiwasm.ImportModule
	}
	if m.Exports.Malloc == "" {
		m.Exports.Malloc = apiwasm.ExportMalloc
	}
	if m.Exports.Realloc == "" {
		m.Exports.Realloc = apiwasm.ExportRealloc
	}
	if m.Exports.ExnStore == "" {
		m.Exports.ExnStore = apiwasm.ExportExnStore
	}
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	// Check required fields
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	for _, c := range m.Capabilities {
		if !imports.IsGrantable(c) {
			return m.invalid("capabilities", fmt.Sprintf("unknown capability: %s (must be one of: %v)",
				c, imports.GrantableCapabilities))
		}
	}

	seen := make(map[string]bool, len(m.Closures))
	for i, c := range m.Closures {
		field := fmt.Sprintf("closures[%d]", i)
		if c.Import == "" {
			return m.invalid(field, "closure import is required")
		}
		if seen[c.Import] {
			return m.invalid(field, fmt.Sprintf("closure import '%s' is listed twice", c.Import))
		}
		seen[c.Import] = true
		if err := c.Validate(); err != nil {
			return m.invalid(field, err.Error())
		}
	}

	if len(m.Closures) > 0 && m.Exports.DestructorTable == "" {
		return m.invalid("exports.destructor_table", "closures need a destructor table")
	}

	// Validate Wasm file exists
	wasmPath := m.WasmPath()
	if _, err := os.Stat(wasmPath); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func (m *Manifest) invalid(field, message string) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: message,
	}
}

// LinkOptions returns the import resolution options the manifest describes.
// Only the listed capabilities are granted beyond core and object.
func (m *Manifest) LinkOptions() imports.LinkOptions {
	opts := imports.LinkOptions{
		Aliases:  m.Aliases,
		Closures: make(map[string]imports.ClosureSpec, len(m.Closures)),
		Granted:  make([]imports.Capability, 0, len(m.Capabilities)),
	}
	for _, c := range m.Closures {
		opts.Closures[c.Import] = c.ClosureSpec
	}
	for _, c := range m.Capabilities {
		opts.Granted = append(opts.Granted, imports.Capability(c))
	}
	return opts
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, "manifest.yaml")
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

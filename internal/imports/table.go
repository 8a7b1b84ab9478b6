// Package imports implements the guest's import table: one marshaling shim per
// host capability, resolved against the import names a guest declares.
package imports

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Capability groups shims for manifest-level grants.
type Capability string

const (
	// CapCore covers the __wbindgen_* intrinsics. Always granted.
	CapCore Capability = "core"
	// CapObject covers generic objects, functions, promises, typed arrays and
	// global discovery. Always granted.
	CapObject Capability = "object"

	CapDOM     Capability = "dom"
	CapWebGL   Capability = "webgl"
	CapFetch   Capability = "fetch"
	CapTiming  Capability = "timing"
	CapCrypto  Capability = "crypto"
	CapURL     Capability = "url"
	CapConsole Capability = "console"
)

// GrantableCapabilities lists capabilities a guest bundle may request.
var GrantableCapabilities = []Capability{
	CapDOM, CapWebGL, CapFetch, CapTiming, CapCrypto, CapURL, CapConsole,
}

// IsGrantable reports whether name is a capability a bundle may request.
func IsGrantable(name string) bool {
	return slices.Contains(GrantableCapabilities, Capability(name))
}

// Value types used in shim signatures.
const (
	i32 = api.ValueTypeI32
	f32 = api.ValueTypeF32
	f64 = api.ValueTypeF64
)

// Shim is one host function the guest can import.
type Shim struct {
	// Key names the shim for aliases, e.g. "Float32Array.set".
	Key string

	// Base is the import name without its hash suffix, e.g. "__wbg_set".
	Base string

	Capability Capability
	Params     []api.ValueType
	Results    []api.ValueType

	// Catching shims store failures in the guest's exception slot and return
	// zero values; the others trap.
	Catching bool

	// Preferred breaks ties between shims sharing a base and signature.
	Preferred bool

	Fn func(c *Call)
}

func (s *Shim) signature() string {
	return signatureString(s.Params, s.Results)
}

// Import is a function import declared by the guest.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Binding pairs an import with the shim that serves it.
type Binding struct {
	Import Import
	Shim   *Shim
}

// LinkOptions controls import resolution.
type LinkOptions struct {
	// Aliases maps full import names to shim keys.
	Aliases map[string]string

	// Closures describes the guest's closure wrapper imports, by import name.
	Closures map[string]ClosureSpec

	// Granted lists capabilities beyond core and object. Nil grants all.
	Granted []Capability
}

func (o LinkOptions) granted(c Capability) bool {
	if c == CapCore || c == CapObject || o.Granted == nil {
		return true
	}
	return slices.Contains(o.Granted, c)
}

// Table is a set of shims indexed by key and base name.
type Table struct {
	byKey  map[string]*Shim
	byBase map[string][]*Shim
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byKey:  make(map[string]*Shim),
		byBase: make(map[string][]*Shim),
	}
}

// DefaultTable returns a table holding every built-in shim.
func DefaultTable() *Table {
	t := NewTable()
	for _, group := range [][]*Shim{
		coreShims(),
		objectShims(),
		promiseShims(),
		typedArrayShims(),
		domShims(),
		fetchShims(),
		cryptoShims(),
		webglShims(),
	} {
		for _, s := range group {
			if err := t.Register(s); err != nil {
				panic(err)
			}
		}
	}
	return t
}

// Register adds s. Keys must be unique.
func (t *Table) Register(s *Shim) error {
	if _, exists := t.byKey[s.Key]; exists {
		return fmt.Errorf("shim '%s' already registered", s.Key)
	}
	if s.Fn == nil {
		return fmt.Errorf("shim '%s' has no implementation", s.Key)
	}
	t.byKey[s.Key] = s
	t.byBase[s.Base] = append(t.byBase[s.Base], s)
	return nil
}

// Lookup returns the shim registered under key.
func (t *Table) Lookup(key string) (*Shim, bool) {
	s, ok := t.byKey[key]
	return s, ok
}

// Len returns the number of registered shims.
func (t *Table) Len() int {
	return len(t.byKey)
}

// Keys returns all shim keys, sorted.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve finds the shim for imp. An alias wins; otherwise the shim must be
// the only one (or the only preferred one) with the import's base name and
// signature.
func (t *Table) Resolve(imp Import, opts LinkOptions) (*Shim, error) {
	if spec, ok := opts.Closures[imp.Name]; ok {
		s, err := closureShim(imp.Name, spec)
		if err != nil {
			return nil, &ResolveError{Import: imp.Name, Reason: err.Error()}
		}
		return t.check(imp, s, opts)
	}

	if key, ok := opts.Aliases[imp.Name]; ok {
		s, found := t.byKey[key]
		if !found {
			return nil, &ResolveError{Import: imp.Name, Reason: fmt.Sprintf("alias target '%s' is not a known shim", key)}
		}
		return t.check(imp, s, opts)
	}

	base := StripHash(imp.Name)
	if strings.HasPrefix(base, "__wbindgen_closure_wrapper") {
		return nil, &ResolveError{Import: imp.Name, Reason: "closure wrapper has no closure description"}
	}

	candidates := t.byBase[base]
	if len(candidates) == 0 {
		return nil, &ResolveError{Import: imp.Name, Reason: "no shim for '" + base + "'"}
	}

	want := signatureString(imp.Params, imp.Results)
	var matches []*Shim
	for _, s := range candidates {
		if s.signature() == want {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &ResolveError{Import: imp.Name, Reason: "no shim with signature " + want}
	case 1:
		return t.check(imp, matches[0], opts)
	}

	var preferred []*Shim
	for _, s := range matches {
		if s.Preferred {
			preferred = append(preferred, s)
		}
	}
	if len(preferred) == 1 {
		return t.check(imp, preferred[0], opts)
	}

	keys := make([]string, len(matches))
	for i, s := range matches {
		keys[i] = s.Key
	}
	return nil, &ResolveError{
		Import: imp.Name,
		Reason: "ambiguous between " + strings.Join(keys, ", ") + "; add an alias",
	}
}

func (t *Table) check(imp Import, s *Shim, opts LinkOptions) (*Shim, error) {
	if got := signatureString(imp.Params, imp.Results); got != s.signature() {
		return nil, &ResolveError{
			Import: imp.Name,
			Reason: fmt.Sprintf("shim '%s' has signature %s, import wants %s", s.Key, s.signature(), got),
		}
	}
	if !opts.granted(s.Capability) {
		return nil, &ResolveError{
			Import: imp.Name,
			Reason: fmt.Sprintf("capability '%s' not granted", s.Capability),
		}
	}
	return s, nil
}

// Link resolves every import. All failures are reported together.
func (t *Table) Link(imports []Import, opts LinkOptions) ([]Binding, error) {
	bindings := make([]Binding, 0, len(imports))
	var errs []error

	for _, imp := range imports {
		s, err := t.Resolve(imp, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bindings = append(bindings, Binding{Import: imp, Shim: s})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return bindings, nil
}

var hashSuffix = regexp.MustCompile(`_[0-9a-f]{16}$`)

// StripHash removes a wasm-bindgen hash suffix ("_" followed by 16 hex digits).
func StripHash(name string) string {
	return hashSuffix.ReplaceAllString(name, "")
}

func signatureString(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(")->(")
	for i, r := range results {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(api.ValueTypeName(r))
	}
	b.WriteByte(')')
	return b.String()
}

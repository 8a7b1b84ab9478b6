package guest

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded guest bundles.
type Registry struct {
	sync.RWMutex
	bundles      map[string]*Bundle   // name -> bundle
	byCapability map[string][]*Bundle // capability -> bundles
	logger       *zap.Logger
}

// NewRegistry creates a new guest registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		bundles:      make(map[string]*Bundle),
		byCapability: make(map[string][]*Bundle),
		logger:       logger.With(zap.String("component", "guest-registry")),
	}
}

// Register adds a bundle to the registry.
func (r *Registry) Register(bundle *Bundle) error {
	r.Lock()
	defer r.Unlock()

	name := bundle.Name()

	// Check for duplicates
	if _, exists := r.bundles[name]; exists {
		return &BundleAlreadyRegisteredError{BundleName: name}
	}

	r.bundles[name] = bundle

	for _, c := range bundle.Capabilities() {
		r.byCapability[c] = append(r.byCapability[c], bundle)
	}

	r.logger.Info("Guest registered",
		zap.String("name", name),
		zap.Strings("capabilities", bundle.Capabilities()),
	)

	return nil
}

// Get retrieves a bundle by name.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.RLock()
	defer r.RUnlock()

	bundle, ok := r.bundles[name]
	return bundle, ok
}

// LookupByCapability finds bundles granted a host capability.
func (r *Registry) LookupByCapability(capability string) []*Bundle {
	r.RLock()
	defer r.RUnlock()

	bundles := r.byCapability[capability]
	result := make([]*Bundle, len(bundles))
	copy(result, bundles)
	return result
}

// List returns all registered bundles sorted by name.
func (r *Registry) List() []*Bundle {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		result = append(result, bundle)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Unregister removes a bundle from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	bundle, ok := r.bundles[name]
	if !ok {
		return
	}

	for _, c := range bundle.Capabilities() {
		bundles := r.byCapability[c]
		for i, b := range bundles {
			if b.Name() == name {
				r.byCapability[c] = append(bundles[:i], bundles[i+1:]...)
				break
			}
		}
		if len(r.byCapability[c]) == 0 {
			delete(r.byCapability, c)
		}
	}

	delete(r.bundles, name)

	r.logger.Info("Guest unregistered", zap.String("name", name))
}

// Count returns the number of registered bundles.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.bundles)
}

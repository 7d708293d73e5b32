package schema

import (
	"reflect"
	"sync"
)

// Registry caches parsed tables per Go type.
//
// Thread-safety: Uses sync.Map for lock-free reads after first write.
// The first successful registration of a type wins; options passed on later
// lookups of the same type are ignored.
type Registry struct {
	cache sync.Map // map[reflect.Type]*Table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Of returns the cached table of T from the process-wide registry,
// parsing it with opts on first use.
func Of[T any](opts ...Option) (*Table, error) {
	return defaultRegistry.Get(reflect.TypeFor[T](), opts...)
}

// Get retrieves the table of rt, lazily parsing on first use.
func (r *Registry) Get(rt reflect.Type, opts ...Option) (*Table, error) {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	// Fast path: check cache first (lock-free read after first write)
	if cached, ok := r.cache.Load(rt); ok {
		return cached.(*Table), nil
	}

	table, err := parseType(rt, opts...)
	if err != nil {
		return nil, err
	}

	// LoadOrStore keeps a single instance when goroutines race on first use
	actual, _ := r.cache.LoadOrStore(rt, table)
	return actual.(*Table), nil
}

// Clear removes all cached tables.
// WARNING: Only call this in tests, not production code.
func (r *Registry) Clear() {
	r.cache.Clear()
}

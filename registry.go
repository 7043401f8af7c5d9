package tlv

import (
	"reflect"
	"sync"
)

// registryKey identifies a schema: the same record type may be bound to
// both formats.
type registryKey struct {
	typ    reflect.Type
	format Format
}

var (
	registry   = make(map[registryKey]any)
	registryMu sync.RWMutex
)

// Use returns the schema for T in format, building it on first use.
// Schemas are shared; concurrent callers receive the same *Schema[T].
func Use[T any](format Format) (*Schema[T], error) {
	typ := reflect.TypeFor[T]()
	key := registryKey{typ: typ, format: format}

	registryMu.RLock()
	if cached, ok := registry[key]; ok {
		registryMu.RUnlock()
		return cached.(*Schema[T]), nil
	}
	registryMu.RUnlock()

	registryMu.Lock()
	defer registryMu.Unlock()

	// Another caller may have built it while we waited.
	if cached, ok := registry[key]; ok {
		return cached.(*Schema[T]), nil
	}

	schema, err := NewSchema[T](format)
	if err != nil {
		return nil, err
	}

	registry[key] = schema
	return schema, nil
}

// Reset clears the schema registry, the plan cache and every converter
// added with RegisterConverter.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	registry = make(map[registryKey]any)
	registryMu.Unlock()

	resetPlans()
	resetConverters()
}

package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*Schema)
	registryMu sync.RWMutex
)

// Register adds a schema to the registry.
// Panics if the schema is invalid or its entity is already registered.
func Register(s *Schema) {
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Entity]; exists {
		panic(fmt.Sprintf("schema already registered: %s", s.Entity))
	}
	registry[s.Entity] = s
}

// Lookup returns the schema for entity.
func Lookup(entity string) (*Schema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, entity)
	}
	return s, nil
}

// Schemas returns all registered schemas sorted by entity.
func Schemas() []*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})

	return result
}

// SchemaCount returns the number of registered schemas.
func SchemaCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered schemas.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Schema)
}

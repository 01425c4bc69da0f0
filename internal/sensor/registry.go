package sensor

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Loader supplies the sensor type mapping.
type Loader interface {
	LoadSensorTypes(ctx context.Context) ([]SensorType, error)
}

// Registry resolves telemetry keys to sensor ids.
//
// A Registry is immutable once built and safe for concurrent use without
// locking. Reloading means building a new Registry and handing it out.
type Registry struct {
	byKey map[string]int64
	types []SensorType
}

// NewRegistry builds a registry from types. Keys and ids must be unique
// and keys non-empty. Keys that differ only in case are rejected too:
// queries address metric columns case-insensitively.
func NewRegistry(types []SensorType) (*Registry, error) {
	r := &Registry{
		byKey: make(map[string]int64, len(types)),
		types: make([]SensorType, 0, len(types)),
	}
	seenIDs := make(map[int64]string, len(types))
	folded := make(map[string]string, len(types))

	for _, st := range types {
		if st.Key == "" {
			return nil, fmt.Errorf("%w: sensor %d has an empty type", ErrRegistryUnavailable, st.ID)
		}
		if _, dup := r.byKey[st.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate type %q", ErrRegistryUnavailable, st.Key)
		}
		if other, dup := folded[strings.ToLower(st.Key)]; dup {
			return nil, fmt.Errorf("%w: types %q and %q differ only in case", ErrRegistryUnavailable, other, st.Key)
		}
		if other, dup := seenIDs[st.ID]; dup {
			return nil, fmt.Errorf("%w: sensor id %d used by %q and %q", ErrRegistryUnavailable, st.ID, other, st.Key)
		}
		r.byKey[st.Key] = st.ID
		seenIDs[st.ID] = st.Key
		folded[strings.ToLower(st.Key)] = st.Key
		r.types = append(r.types, st)
	}

	sort.Slice(r.types, func(i, j int) bool { return r.types[i].ID < r.types[j].ID })
	return r, nil
}

// LoadRegistry reads the mapping from loader and builds a registry.
// Every failure wraps ErrRegistryUnavailable.
func LoadRegistry(ctx context.Context, loader Loader) (*Registry, error) {
	types, err := loader.LoadSensorTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: no sensor types defined", ErrRegistryUnavailable)
	}
	return NewRegistry(types)
}

// Resolve returns the sensor id for key.
func (r *Registry) Resolve(key string) (int64, bool) {
	id, ok := r.byKey[key]
	return id, ok
}

// Keys returns the registered keys ordered by sensor id.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.types))
	for i, st := range r.types {
		keys[i] = st.Key
	}
	return keys
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}

package sync

import "sync"

// TypedSyncMap is a sync.Map restricted to keys of type K and values of type V.
type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

func (m *TypedSyncMap[K, V]) Delete(key K) { m.m.Delete(key) }

func (m *TypedSyncMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return *new(V), ok
	}

	if vv, ok := v.(V); ok {
		return vv, true
	}
	return *new(V), false
}

func (m *TypedSyncMap[K, V]) LoadAndDelete(key K) (V, bool) {
	v, loaded := m.m.LoadAndDelete(key)
	if !loaded {
		return *new(V), loaded
	}

	if vv, ok := v.(V); ok {
		return vv, loaded
	}
	return *new(V), loaded
}

func (m *TypedSyncMap[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// Range calls f for each key and value present in the map, stopping
// early if f returns false. See sync.Map.Range for the consistency
// guarantees.
func (m *TypedSyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool {
		kk, ok := k.(K)
		if !ok {
			return true
		}
		vv, ok := v.(V)
		if !ok {
			return true
		}

		return f(kk, vv)
	})
}

// Drain removes every entry from the map, returning them. Entries stored
// concurrently with the drain may be left for the next call.
func (m *TypedSyncMap[K, V]) Drain() map[K]V {
	out := make(map[K]V)
	m.Range(func(key K, _ V) bool {
		if v, ok := m.LoadAndDelete(key); ok {
			out[key] = v
		}
		return true
	})

	return out
}

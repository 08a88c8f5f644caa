package ingest

import "sort"

// Index assigns dense ids to string keys in insertion order.
type Index struct {
	keys []string
	ids  map[string]int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{ids: make(map[string]int)}
}

// NewSortedIndex indexes the distinct keys in ascending order.
func NewSortedIndex(keys []string) *Index {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	idx := &Index{ids: make(map[string]int, len(sorted))}
	for _, k := range sorted {
		idx.Add(k)
	}
	return idx
}

// SetIndex indexes the keys of set in ascending order.
func SetIndex[V any](set map[string]V) *Index {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return NewSortedIndex(keys)
}

// Add returns the id of key, assigning the next one if it is new.
func (x *Index) Add(key string) int {
	if id, ok := x.ids[key]; ok {
		return id
	}
	id := len(x.keys)
	x.ids[key] = id
	x.keys = append(x.keys, key)
	return id
}

// Lookup returns the id of key.
func (x *Index) Lookup(key string) (int, bool) {
	id, ok := x.ids[key]
	return id, ok
}

// Key returns the key with the given id, or "" when out of range.
func (x *Index) Key(id int) string {
	if id < 0 || id >= len(x.keys) {
		return ""
	}
	return x.keys[id]
}

// Keys returns all keys in id order. The slice must not be modified.
func (x *Index) Keys() []string { return x.keys }

// Len returns the number of keys.
func (x *Index) Len() int { return len(x.keys) }

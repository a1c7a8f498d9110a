// Package tagindex provides an in-process tag/key index for backends whose
// underlying store cannot index tags or enumerate keys itself (BigCache,
// Ristretto).
package tagindex

import "sync"

// Index tracks which keys exist and which tags each key carries. Safe for
// concurrent use.
type Index struct {
	mu     sync.RWMutex
	byTag  map[string]map[string]struct{} // tag -> keys
	tagsOf map[string][]string            // key -> tags
	keys   map[string]struct{}
}

func New() *Index {
	return &Index{
		byTag:  make(map[string]map[string]struct{}),
		tagsOf: make(map[string][]string),
		keys:   make(map[string]struct{}),
	}
}

// Put registers key with tags, replacing any previous tag associations.
func (x *Index) Put(key string, tags []string) {
	x.mu.Lock()
	x.dropLocked(key)
	x.keys[key] = struct{}{}
	if len(tags) > 0 {
		x.tagsOf[key] = append([]string(nil), tags...)
		for _, t := range tags {
			set, ok := x.byTag[t]
			if !ok {
				set = make(map[string]struct{})
				x.byTag[t] = set
			}
			set[key] = struct{}{}
		}
	}
	x.mu.Unlock()
}

// Remove forgets key and its tag associations. Removing an unknown key is a
// no-op.
func (x *Index) Remove(key string) {
	x.mu.Lock()
	x.dropLocked(key)
	x.mu.Unlock()
}

func (x *Index) dropLocked(key string) {
	delete(x.keys, key)
	for _, t := range x.tagsOf[key] {
		if set := x.byTag[t]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(x.byTag, t)
			}
		}
	}
	delete(x.tagsOf, key)
}

// Keys returns every tracked key.
func (x *Index) Keys() []string {
	x.mu.RLock()
	out := make([]string, 0, len(x.keys))
	for k := range x.keys {
		out = append(out, k)
	}
	x.mu.RUnlock()
	return out
}

// KeysByTag returns the keys currently carrying tag.
func (x *Index) KeysByTag(tag string) []string {
	x.mu.RLock()
	set := x.byTag[tag]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	x.mu.RUnlock()
	return out
}

// DropTag removes the tag's index entry without touching key registrations.
func (x *Index) DropTag(tag string) {
	x.mu.Lock()
	for k := range x.byTag[tag] {
		tags := x.tagsOf[k]
		kept := tags[:0]
		for _, t := range tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(x.tagsOf, k)
		} else {
			x.tagsOf[k] = kept
		}
	}
	delete(x.byTag, tag)
	x.mu.Unlock()
}

// Clear resets the index.
func (x *Index) Clear() {
	x.mu.Lock()
	x.byTag = make(map[string]map[string]struct{})
	x.tagsOf = make(map[string][]string)
	x.keys = make(map[string]struct{})
	x.mu.Unlock()
}

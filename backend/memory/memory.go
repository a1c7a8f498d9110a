// Package memory implements the tagcache backend contract on a plain
// mutex-guarded map. It is the reference backend: every optional capability
// is supported, and it is what the orchestrator's own tests run against.
package memory

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/tagcache/backend"
)

type Backend struct {
	mu      sync.RWMutex
	entries map[string]*backend.Entry
	byTag   map[string]map[string]struct{}
}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		entries: make(map[string]*backend.Entry),
		byTag:   make(map[string]map[string]struct{}),
	}
}

func (b *Backend) Read(_ context.Context, key string) (*backend.Entry, error) {
	b.mu.RLock()
	e := b.entries[key]
	b.mu.RUnlock()
	return e.Clone(), nil
}

func (b *Backend) ReadAll(_ context.Context) ([]*backend.Entry, error) {
	b.mu.RLock()
	out := make([]*backend.Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.Clone())
	}
	b.mu.RUnlock()
	return out, nil
}

func (b *Backend) Write(_ context.Context, e *backend.Entry) error {
	cp := e.Clone()
	b.mu.Lock()
	b.unindexLocked(cp.Key)
	b.entries[cp.Key] = cp
	for _, t := range cp.Tags {
		set, ok := b.byTag[t]
		if !ok {
			set = make(map[string]struct{})
			b.byTag[t] = set
		}
		set[cp.Key] = struct{}{}
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	b.unindexLocked(key)
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// unindexLocked drops key from every tag set of its current entry.
func (b *Backend) unindexLocked(key string) {
	old, ok := b.entries[key]
	if !ok {
		return
	}
	for _, t := range old.Tags {
		if set := b.byTag[t]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(b.byTag, t)
			}
		}
	}
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	b.entries = make(map[string]*backend.Entry)
	b.byTag = make(map[string]map[string]struct{})
	b.mu.Unlock()
	return nil
}

func (b *Backend) KeysByTag(_ context.Context, tag string) ([]string, error) {
	b.mu.RLock()
	set := b.byTag[tag]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	b.mu.RUnlock()
	return out, nil
}

func (b *Backend) DeleteTag(_ context.Context, tag string) error {
	b.mu.Lock()
	delete(b.byTag, tag)
	b.mu.Unlock()
	return nil
}

func (b *Backend) PurgeExpired(_ context.Context, now int64) (int, error) {
	b.mu.Lock()
	n := 0
	for k, e := range b.entries {
		if e.Expired(now) {
			b.unindexLocked(k)
			delete(b.entries, k)
			n++
		}
	}
	b.mu.Unlock()
	return n, nil
}

func (b *Backend) Close(_ context.Context) error { return nil }

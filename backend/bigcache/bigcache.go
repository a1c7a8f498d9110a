// Package bigcache implements the tagcache backend contract on
// allegro/bigcache. BigCache itself stores only opaque bytes and cannot
// index tags or enumerate expiring keys, so a sidecar in-process index
// tracks keys and tag membership. BigCache's own LifeWindow eviction may
// drop entries behind the index's back; the index self-heals on the next
// read of an evicted key.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/internal/tagindex"
	"github.com/unkn0wn-root/tagcache/internal/wire"
)

type Backend struct {
	c   *bc.BigCache
	idx *tagindex.Index
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	// LifeWindow is BigCache's global retention window. It bounds how long
	// stale-while-revalidate can serve an expired entry; pick it larger
	// than your longest TTL plus acceptable staleness.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c, idx: tagindex.New()}, nil
}

func (b *Backend) Read(_ context.Context, key string) (*backend.Entry, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		b.idx.Remove(key) // evicted behind the index's back
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e, derr := wire.DecodeEntry(raw)
	if derr != nil {
		_ = b.c.Delete(key)
		b.idx.Remove(key)
		return nil, nil
	}
	return e, nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]*backend.Entry, error) {
	keys := b.idx.Keys()
	out := make([]*backend.Entry, 0, len(keys))
	for _, k := range keys {
		e, err := b.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) Write(_ context.Context, e *backend.Entry) error {
	if err := b.c.Set(e.Key, wire.EncodeEntry(e)); err != nil {
		return err
	}
	b.idx.Put(e.Key, e.Tags)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := b.c.Delete(key)
	b.idx.Remove(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (b *Backend) Clear(_ context.Context) error {
	if err := b.c.Reset(); err != nil {
		return err
	}
	b.idx.Clear()
	return nil
}

func (b *Backend) KeysByTag(_ context.Context, tag string) ([]string, error) {
	return b.idx.KeysByTag(tag), nil
}

func (b *Backend) DeleteTag(_ context.Context, tag string) error {
	b.idx.DropTag(tag)
	return nil
}

func (b *Backend) PurgeExpired(ctx context.Context, now int64) (int, error) {
	n := 0
	for _, k := range b.idx.Keys() {
		e, err := b.Read(ctx, k)
		if err != nil {
			return n, err
		}
		if e != nil && e.Expired(now) {
			if err := b.Delete(ctx, k); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (b *Backend) Close(_ context.Context) error { return b.c.Close() }

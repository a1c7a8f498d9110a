// Package redis implements the tagcache backend contract on Redis.
//
// Layout (all under a configurable namespace):
//
//	<ns>:e:<key>  entry envelope bytes (internal/wire)
//	<ns>:t:<tag>  set of keys carrying the tag
//	<ns>:x        sorted set of expiring keys, scored by ExpiresAt
//
// By default entries carry no Redis-side TTL: expired entries must stay
// readable for stale-while-revalidate, and PurgeExpired reclaims them in
// bulk. Config.StaleGrace opts into a server TTL of ExpiresAt plus the
// grace window, so the server eventually reclaims entries even if nobody
// purges. Tag sets are
// allowed to hold stale members (a member without a live entry); deleting a
// stale key is a no-op for the orchestrator.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/internal/wire"
)

var ErrNilClient = errors.New("redis backend: nil client")

const scanBatch = 512

type Backend struct {
	rdb         goredis.UniversalClient
	ns          string
	staleGrace  time.Duration
	closeClient bool
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	Client    goredis.UniversalClient
	Namespace string // defaults to "tagcache"
	// StaleGrace, when > 0, applies a server-side TTL of the entry's
	// remaining lifetime plus this window. Zero disables server TTLs.
	StaleGrace time.Duration
	// CloseClient: set true only if this backend exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "tagcache"
	}
	return &Backend{
		rdb:         cfg.Client,
		ns:          ns,
		staleGrace:  cfg.StaleGrace,
		closeClient: cfg.CloseClient,
	}, nil
}

func (b *Backend) entryKey(key string) string { return b.ns + ":e:" + key }
func (b *Backend) tagKey(tag string) string   { return b.ns + ":t:" + tag }
func (b *Backend) expiryKey() string          { return b.ns + ":x" }

func (b *Backend) Read(ctx context.Context, key string) (*backend.Entry, error) {
	raw, err := b.rdb.Get(ctx, b.entryKey(key)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e, err := wire.DecodeEntry(raw)
	if err != nil {
		// self-heal foreign/corrupt bytes under our keyspace
		_ = b.rdb.Del(ctx, b.entryKey(key)).Err()
		return nil, nil
	}
	return e, nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]*backend.Entry, error) {
	var out []*backend.Entry
	iter := b.rdb.Scan(ctx, 0, b.ns+":e:*", scanBatch).Iterator()
	for iter.Next(ctx) {
		raw, err := b.rdb.Get(ctx, iter.Val()).Bytes()
		if err == goredis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		e, derr := wire.DecodeEntry(raw)
		if derr != nil {
			_ = b.rdb.Del(ctx, iter.Val()).Err()
			continue
		}
		out = append(out, e)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) Write(ctx context.Context, e *backend.Entry) error {
	// overwrite semantics include the prior tag associations
	old, err := b.Read(ctx, e.Key)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if e.ExpiresAt != 0 && b.staleGrace > 0 {
		ttl = time.Until(time.UnixMilli(e.ExpiresAt)) + b.staleGrace
		if ttl <= 0 {
			ttl = b.staleGrace
		}
	}

	raw := wire.EncodeEntry(e)
	_, err = b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if old != nil {
			for _, t := range old.Tags {
				p.SRem(ctx, b.tagKey(t), e.Key)
			}
		}
		p.Set(ctx, b.entryKey(e.Key), raw, ttl)
		for _, t := range e.Tags {
			p.SAdd(ctx, b.tagKey(t), e.Key)
		}
		if e.ExpiresAt != 0 {
			p.ZAdd(ctx, b.expiryKey(), goredis.Z{Score: float64(e.ExpiresAt), Member: e.Key})
		} else {
			p.ZRem(ctx, b.expiryKey(), e.Key)
		}
		return nil
	})
	return err
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	old, err := b.Read(ctx, key)
	if err != nil {
		return err
	}
	_, err = b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if old != nil {
			for _, t := range old.Tags {
				p.SRem(ctx, b.tagKey(t), key)
			}
		}
		p.Del(ctx, b.entryKey(key))
		p.ZRem(ctx, b.expiryKey(), key)
		return nil
	})
	return err
}

func (b *Backend) Clear(ctx context.Context) error {
	iter := b.rdb.Scan(ctx, 0, b.ns+":*", scanBatch).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := b.rdb.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

func (b *Backend) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	return b.rdb.SMembers(ctx, b.tagKey(tag)).Result()
}

func (b *Backend) DeleteTag(ctx context.Context, tag string) error {
	return b.rdb.Del(ctx, b.tagKey(tag)).Err()
}

func (b *Backend) PurgeExpired(ctx context.Context, now int64) (int, error) {
	upper := strconv.FormatInt(now, 10)
	keys, err := b.rdb.ZRangeByScore(ctx, b.expiryKey(), &goredis.ZRangeBy{
		Min: "1",
		Max: upper,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = b.entryKey(k)
	}
	// DEL's reply is the purge count: entries already reclaimed by a
	// StaleGrace server TTL must not be counted twice
	var del *goredis.IntCmd
	_, err = b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, entryKeys...)
		p.ZRemRangeByScore(ctx, b.expiryKey(), "1", upper)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(del.Val()), nil
}

// Close releases the underlying redis client only when this backend owns
// it. Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

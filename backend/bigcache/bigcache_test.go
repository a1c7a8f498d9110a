package bigcache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/backend"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()
	b, err := New(ctx, Config{LifeWindow: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(ctx) })
	return b
}

func entry(key string, expiresAt int64, tags ...string) *backend.Entry {
	return &backend.Entry{
		Key:       key,
		TypeID:    "t@1",
		Payload:   []byte("payload-" + key),
		CreatedAt: 1_000,
		ExpiresAt: expiresAt,
		Tags:      tags,
	}
}

func TestRoundTripThroughEnvelope(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	in := entry("k", 9_000, "g")
	if err := b.Write(ctx, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	e, err := b.Read(ctx, "k")
	if err != nil || e == nil {
		t.Fatalf("Read: e=%v err=%v", e, err)
	}
	if e.TypeID != in.TypeID || string(e.Payload) != string(in.Payload) ||
		e.ExpiresAt != in.ExpiresAt || len(e.Tags) != 1 || e.Tags[0] != "g" {
		t.Fatalf("round trip mismatch: %+v", e)
	}

	if e, err := b.Read(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("miss must be (nil, nil), got e=%v err=%v", e, err)
	}
}

func TestTagsAndReadAllViaSidecarIndex(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Write(ctx, entry("k1", 0, "user")); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("k2", 0, "user")); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("k3", 0, "post")); err != nil {
		t.Fatal(err)
	}

	keys, err := b.KeysByTag(ctx, "user")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("KeysByTag: %v", keys)
	}

	all, err := b.ReadAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ReadAll: n=%d err=%v", len(all), err)
	}

	if err := b.Delete(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	if keys, _ := b.KeysByTag(ctx, "user"); len(keys) != 1 || keys[0] != "k2" {
		t.Fatalf("index not updated on delete: %v", keys)
	}
}

func TestPurgeExpiredWalksIndex(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Write(ctx, entry("dead", 5_000)); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("live", 50_000)); err != nil {
		t.Fatal(err)
	}

	n, err := b.PurgeExpired(ctx, 5_000)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired: n=%d err=%v", n, err)
	}
	if e, _ := b.Read(ctx, "dead"); e != nil {
		t.Fatalf("purged entry still readable")
	}
	if e, _ := b.Read(ctx, "live"); e == nil {
		t.Fatalf("live entry should survive purge")
	}
}

func TestClearResetsStoreAndIndex(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Write(ctx, entry("k", 0, "g")); err != nil {
		t.Fatal(err)
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if e, _ := b.Read(ctx, "k"); e != nil {
		t.Fatalf("entry survived Clear")
	}
	if keys, _ := b.KeysByTag(ctx, "g"); len(keys) != 0 {
		t.Fatalf("index survived Clear: %v", keys)
	}
}

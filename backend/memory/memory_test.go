package memory

import (
	"context"
	"sort"
	"testing"

	"github.com/unkn0wn-root/tagcache/backend"
)

func entry(key, typeID string, expiresAt int64, tags ...string) *backend.Entry {
	return &backend.Entry{
		Key:       key,
		TypeID:    typeID,
		Payload:   []byte("payload-" + key),
		CreatedAt: 1_000,
		ExpiresAt: expiresAt,
		Tags:      tags,
	}
}

func TestWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	b := New()

	if err := b.Write(ctx, entry("k", "t", 0)); err != nil {
		t.Fatal(err)
	}
	e, err := b.Read(ctx, "k")
	if err != nil || e == nil || e.Key != "k" || e.TypeID != "t" {
		t.Fatalf("Read: e=%+v err=%v", e, err)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if e, _ := b.Read(ctx, "k"); e != nil {
		t.Fatalf("entry survived delete")
	}
	// deleting an absent key is not an error
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	b := New()
	if err := b.Write(ctx, entry("k", "t", 0, "g")); err != nil {
		t.Fatal(err)
	}

	e, _ := b.Read(ctx, "k")
	e.Payload[0] = 'X'
	e.Tags[0] = "mutated"

	again, _ := b.Read(ctx, "k")
	if again.Payload[0] == 'X' || again.Tags[0] == "mutated" {
		t.Fatalf("caller mutation leaked into stored entry")
	}
}

func TestOverwriteReindexesTags(t *testing.T) {
	ctx := context.Background()
	b := New()

	if err := b.Write(ctx, entry("k", "t", 0, "old")); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("k", "t", 0, "new")); err != nil {
		t.Fatal(err)
	}

	if keys, _ := b.KeysByTag(ctx, "old"); len(keys) != 0 {
		t.Fatalf("stale tag index: %v", keys)
	}
	if keys, _ := b.KeysByTag(ctx, "new"); len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("missing tag index: %v", keys)
	}
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	b := New()
	for _, k := range []string{"a", "b", "c"} {
		if err := b.Write(ctx, entry(k, "t", 0)); err != nil {
			t.Fatal(err)
		}
	}
	all, err := b.ReadAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ReadAll: n=%d err=%v", len(all), err)
	}
	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.Key
	}
	sort.Strings(keys)
	if keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("ReadAll keys: %v", keys)
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	b := New()

	if err := b.Write(ctx, entry("dead", "t", 5_000, "g")); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("live", "t", 50_000)); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, entry("forever", "t", 0)); err != nil {
		t.Fatal(err)
	}

	n, err := b.PurgeExpired(ctx, 5_000) // expired exactly AT the instant
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired: n=%d err=%v", n, err)
	}
	if e, _ := b.Read(ctx, "dead"); e != nil {
		t.Fatalf("purged entry still readable")
	}
	if keys, _ := b.KeysByTag(ctx, "g"); len(keys) != 0 {
		t.Fatalf("purge left tag index behind: %v", keys)
	}
	for _, k := range []string{"live", "forever"} {
		if e, _ := b.Read(ctx, k); e == nil {
			t.Fatalf("%s should survive purge", k)
		}
	}
}

func TestClearAndDeleteTag(t *testing.T) {
	ctx := context.Background()
	b := New()
	if err := b.Write(ctx, entry("k", "t", 0, "g")); err != nil {
		t.Fatal(err)
	}

	if err := b.DeleteTag(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	if keys, _ := b.KeysByTag(ctx, "g"); len(keys) != 0 {
		t.Fatalf("tag survived DeleteTag: %v", keys)
	}
	if e, _ := b.Read(ctx, "k"); e == nil {
		t.Fatalf("DeleteTag must not delete entries")
	}

	if err := b.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if all, _ := b.ReadAll(ctx); len(all) != 0 {
		t.Fatalf("entries survived Clear")
	}
}

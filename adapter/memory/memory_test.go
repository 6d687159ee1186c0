package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/tag"
)

func entry(v string, ttl time.Duration) adapter.Entry[string] {
	now := time.Now()
	return adapter.Entry[string]{
		Value:     v,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{})
	defer a.Close(ctx)

	if _, ok, err := a.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := a.Set(ctx, "k", entry("v1", time.Minute)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := a.Get(ctx, "k")
	if err != nil || !ok || got.Value != "v1" {
		t.Fatalf("Get: ok=%v err=%v got=%+v", ok, err, got)
	}

	// replacing writes a new entry under the same key, never a second one
	if err := a.Set(ctx, "k", entry("v2", time.Minute)); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	if a.Len() != 1 {
		t.Fatalf("duplicate live entries after replace: %d", a.Len())
	}
	got, _, _ = a.Get(ctx, "k")
	if got.Value != "v2" {
		t.Fatalf("replace not visible: %+v", got)
	}

	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); ok {
		t.Fatalf("entry survived Delete")
	}
	// deleting a missing key is not an error
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{MaxEntries: 3})
	defer a.Close(ctx)

	for _, k := range []string{"a", "b", "c"} {
		_ = a.Set(ctx, k, entry(k, time.Minute))
	}
	// touch "a" so "b" becomes least recently used
	if _, ok, _ := a.Get(ctx, "a"); !ok {
		t.Fatalf("expected hit on a")
	}
	_ = a.Set(ctx, "d", entry("d", time.Minute))

	if _, ok, _ := a.Get(ctx, "b"); ok {
		t.Fatalf("LRU victim should have been b")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok, _ := a.Get(ctx, k); !ok {
			t.Fatalf("key %q evicted unexpectedly", k)
		}
	}
	if a.Len() != 3 {
		t.Fatalf("capacity exceeded: %d", a.Len())
	}
}

func TestSetMarksRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{MaxEntries: 2})
	defer a.Close(ctx)

	_ = a.Set(ctx, "a", entry("a", time.Minute))
	_ = a.Set(ctx, "b", entry("b", time.Minute))
	// rewrite "a": it becomes MRU, so "b" is the next victim
	_ = a.Set(ctx, "a", entry("a2", time.Minute))
	_ = a.Set(ctx, "c", entry("c", time.Minute))

	if _, ok, _ := a.Get(ctx, "b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok, _ := a.Get(ctx, "a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestTagTimestamps(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{})
	defer a.Close(ctx)

	p := tag.Path{"posts", "1"}
	if _, ok, err := a.TagInvalidatedAt(ctx, p); err != nil || ok {
		t.Fatalf("expected no record, ok=%v err=%v", ok, err)
	}
	ts := time.Now()
	if err := a.SetTagInvalidatedAt(ctx, p, ts); err != nil {
		t.Fatalf("SetTagInvalidatedAt: %v", err)
	}
	got, ok, err := a.TagInvalidatedAt(ctx, p)
	if err != nil || !ok || !got.Equal(ts) {
		t.Fatalf("TagInvalidatedAt: ok=%v err=%v got=%v", ok, err, got)
	}
	// a sibling path must not observe the record
	if _, ok, _ := a.TagInvalidatedAt(ctx, tag.Path{"posts", "2"}); ok {
		t.Fatalf("record leaked to sibling path")
	}
}

func TestClearDropsEntriesAndTags(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{})
	defer a.Close(ctx)

	_ = a.Set(ctx, "k", entry("v", time.Minute))
	_ = a.SetTagInvalidatedAt(ctx, tag.Path{"t"}, time.Now())
	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); ok {
		t.Fatalf("entry survived Clear")
	}
	if _, ok, _ := a.TagInvalidatedAt(ctx, tag.Path{"t"}); ok {
		t.Fatalf("tag record survived Clear")
	}
}

func TestJanitorPrunesOldTagRecords(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{CleanupInterval: 10 * time.Millisecond, TagRetention: 30 * time.Millisecond})
	defer a.Close(ctx)

	_ = a.SetTagInvalidatedAt(ctx, tag.Path{"old"}, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, _ := a.TagInvalidatedAt(ctx, tag.Path{"old"}); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor never pruned the record")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	a := New[int](Config{MaxEntries: 64})
	defer a.Close(ctx)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", i%100)
				now := time.Now()
				_ = a.Set(ctx, k, adapter.Entry[int]{Value: i, CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
				_, _, _ = a.Get(ctx, k)
				if i%17 == 0 {
					_ = a.Delete(ctx, k)
				}
				_ = a.SetTagInvalidatedAt(ctx, tag.Path{"g", fmt.Sprint(g)}, now)
				_, _, _ = a.TagInvalidatedAt(ctx, tag.Path{"g", fmt.Sprint(g)})
			}
		}(g)
	}
	wg.Wait()
	if a.Len() > 64 {
		t.Fatalf("capacity bound violated: %d", a.Len())
	}
}

func TestCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	a := New[string](Config{CleanupInterval: time.Minute, TagRetention: time.Hour})
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

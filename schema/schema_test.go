package schema

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/adapter/memory"
	"github.com/unkn0wn-root/scopecache/tag"
)

func newCache(t *testing.T) scopecache.Cache[string] {
	t.Helper()
	c, err := scopecache.New[string](scopecache.Options[string]{
		Adapter:       memory.New[string](memory.Config{MaxEntries: 64}),
		DisableVerify: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestSpecFill(t *testing.T) {
	s := Lit("posts").Arg(0).Lit("comments").Arg(1)

	p, err := s.Fill([]string{"42", "7"})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !p.Equal(tag.New("posts", "42", "comments", "7")) {
		t.Fatalf("filled path = %v", p)
	}

	if _, err := s.Fill([]string{"42"}); err == nil {
		t.Fatal("expected error for missing arg")
	}
}

func TestSpecBuilderCopies(t *testing.T) {
	base := Lit("users")
	a := base.Arg(0)
	b := base.Lit("all")

	pa, _ := a.Fill([]string{"1"})
	pb, _ := b.Fill(nil)
	if !pa.Equal(tag.New("users", "1")) || !pb.Equal(tag.New("users", "all")) {
		t.Fatalf("builder aliasing: %v / %v", pa, pb)
	}
}

func TestBindValidatesArity(t *testing.T) {
	c := newCache(t)
	_, err := Bind[string](c, Config[string]{
		Name:  "user",
		Args:  1,
		Specs: []Spec{Lit("users").Arg(1)}, // slot 1, arity 1
		Fetch: func(context.Context, []string) (string, error) { return "", nil },
	})
	if err == nil {
		t.Fatal("expected arity error")
	}
}

func TestBindRequiredFields(t *testing.T) {
	c := newCache(t)
	fetch := func(context.Context, []string) (string, error) { return "", nil }

	if _, err := Bind[string](c, Config[string]{Args: 0, Fetch: fetch}); err == nil {
		t.Fatal("expected name error")
	}
	if _, err := Bind[string](c, Config[string]{Name: "x"}); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestBoundGetCachesAndInvalidates(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var calls atomic.Int64
	b, err := Bind[string](c, Config[string]{
		Name:  "user",
		Args:  1,
		Specs: []Spec{Lit("users").Arg(0)},
		Fetch: func(_ context.Context, args []string) (string, error) {
			calls.Add(1)
			return "name-" + args[0], nil
		},
	})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	for i := 0; i < 3; i++ {
		v, err := b.Get(ctx, "42")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != "name-42" {
			t.Fatalf("v = %q", v)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}

	// different args, different key
	if _, err := b.Get(ctx, "7"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}

	if err := b.Invalidate(ctx, "42"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := b.Get(ctx, "42"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("fetch calls after invalidate = %d, want 3", n)
	}
}

func TestBoundArityMismatch(t *testing.T) {
	c := newCache(t)
	b, err := Bind[string](c, Config[string]{
		Name:  "pair",
		Args:  2,
		Fetch: func(context.Context, []string) (string, error) { return "", nil },
	})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := b.Get(context.Background(), "only-one"); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

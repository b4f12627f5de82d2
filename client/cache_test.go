package client

import (
	"context"
	"errors"
	"testing"
)

func TestCacheGetFetchesOnMiss(t *testing.T) {
	c := NewCache[int]()
	calls := 0

	fetch := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	got, err := c.Get(context.Background(), "k", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d (calls %d), want 42 (calls 1)", got, calls)
	}

	// Taze kayıt — fetch tekrar çağrılmaz
	got, err = c.Get(context.Background(), "k", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("fresh entry should not refetch: got %d, calls %d", got, calls)
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	c := NewCache[int]()
	value := 1

	fetch := func(context.Context) (int, error) {
		return value, nil
	}

	if got, _ := c.Get(context.Background(), "k", fetch); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}

	value = 2
	c.Invalidate("k")

	got, err := c.Get(context.Background(), "k", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 2 {
		t.Errorf("stale entry should refetch: got %d, want 2", got)
	}
}

func TestCacheFailedRefetchKeepsPriorValue(t *testing.T) {
	c := NewCache[string]()
	fail := false

	fetch := func(context.Context) (string, error) {
		if fail {
			return "", errors.New("network down")
		}
		return "cached", nil
	}

	if _, err := c.Get(context.Background(), "k", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c.Invalidate("k")
	fail = true

	// Refetch başarısız — eski değer HATAYLA BİRLİKTE döner
	got, err := c.Get(context.Background(), "k", fetch)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if got != "cached" {
		t.Errorf("prior value should survive a failed refetch: %q", got)
	}
}

func TestCacheFailedFirstFetch(t *testing.T) {
	c := NewCache[string]()

	_, err := c.Get(context.Background(), "k", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected fetch error")
	}

	// Hata cache'lenmez — sonraki başarılı fetch normal çalışır
	got, err := c.Get(context.Background(), "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

func TestCachePutAndFresh(t *testing.T) {
	c := NewCache[int]()

	if c.Fresh("k") {
		t.Error("unknown key should not be fresh")
	}

	c.Put("k", 7)
	if !c.Fresh("k") {
		t.Error("key should be fresh after Put")
	}

	got, err := c.Get(context.Background(), "k", func(context.Context) (int, error) {
		t.Fatal("fetch should not run for a fresh entry")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c := NewCache[int]()
	c.Put("a", 1)
	c.Put("b", 2)

	c.InvalidateAll()

	if c.Fresh("a") || c.Fresh("b") {
		t.Error("all entries should be stale after InvalidateAll")
	}
}

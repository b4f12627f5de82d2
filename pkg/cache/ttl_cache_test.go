package cache

import (
	"strings"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 42)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected key to be present")
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("missing key should not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, string](20*time.Millisecond, time.Minute)
	defer c.Close()

	c.Set("a", "value")

	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry should be fresh immediately after Set")
	}

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should not be returned")
	}
}

func TestDelete(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should not be found")
	}
}

func TestDeleteFunc(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("user:1", 1)
	c.Set("user:2", 2)
	c.Set("conv:1", 3)

	c.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, "user:")
	})

	if _, ok := c.Get("user:1"); ok {
		t.Error("user:1 should be deleted")
	}
	if _, ok := c.Get("user:2"); ok {
		t.Error("user:2 should be deleted")
	}
	if _, ok := c.Get("conv:1"); !ok {
		t.Error("conv:1 should survive")
	}
}

func TestClearAndLen(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}

	c.Clear()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}

func TestEvictExpired(t *testing.T) {
	c := New[string, int](10*time.Millisecond, 20*time.Millisecond)
	defer c.Close()

	c.Set("a", 1)
	time.Sleep(50 * time.Millisecond)

	// Periyodik cleanup süresi dolan entry'yi fiziksel olarak silmiş olmalı
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", got)
	}
}

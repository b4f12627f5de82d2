// Package client, kurye API'si için Go client data katmanı.
//
// İki parça: HTTP API client (Client) ve stale-flag cache (Cache).
// Cache "pull" modelidir — relay event'leri cache'i DOLDURMAZ, sadece
// stale işaretler; veri her zaman bir sonraki okumada API'den çekilir.
// Authoritative state daima sunucudur.
package client

import (
	"context"
	"sync"
)

// entry, cache'teki tek bir kaydın durumu.
type entry[V any] struct {
	value  V
	loaded bool // En az bir başarılı fetch yapıldı mı?
	stale  bool // Invalidate edildi — sonraki okuma refetch yapar
}

// Cache, id ile anahtarlanmış stale-flag cache.
//
// Get, taze bir kayıt varsa onu döner; kayıt yok veya stale ise fetch
// fonksiyonunu çağırır. Fetch başarısız olursa ve elde eski bir değer
// varsa, eski değer HATAYLA BİRLİKTE döner — UI eski veriyi gösterip
// hata affordance'ı basabilir.
//
// Her resource türü için ayrı bir Cache instance'ı kullanılır
// (konuşma listesi, konuşma başına mesajlar); (resource, id) anahtarı
// böylece tip güvenli kalır.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
}

// NewCache, boş bir cache oluşturur.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]*entry[V])}
}

// Get, id için taze değeri döner; gerekirse fetch ile yeniler.
//
// Fetch cache lock'u TUTULMADAN çalışır — yavaş bir API çağrısı diğer
// anahtarların okunmasını bloklamaz. Bedeli: aynı anahtara eşzamanlı iki
// Get iki fetch tetikleyebilir; son yazan kazanır. Cache-invalidation
// hint modelinde bu kabul edilebilir, veri zaten idempotent bir GET'tir.
func (c *Cache[V]) Get(ctx context.Context, id string, fetch func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && e.loaded && !e.stale {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	var prev V
	hadPrev := ok && e.loaded
	if hadPrev {
		prev = e.value
	}
	c.mu.Unlock()

	v, err := fetch(ctx)
	if err != nil {
		if hadPrev {
			return prev, err
		}
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[id] = &entry[V]{value: v, loaded: true}
	c.mu.Unlock()
	return v, nil
}

// Put, başarılı bir lokal mutation'ın sonucunu doğrudan yerleştirir
// ve kaydı taze işaretler.
func (c *Cache[V]) Put(id string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &entry[V]{value: value, loaded: true}
}

// Invalidate, kaydı stale işaretler. Değer silinmez — fetch başarısız
// olursa eski değer hâlâ gösterilebilir.
func (c *Cache[V]) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.stale = true
	}
}

// InvalidateAll, tüm kayıtları stale işaretler.
// Reconnect sonrası resync için: relay kaçan event'leri replay etmez,
// client her şeyi şüpheli sayıp yeniden çeker.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.stale = true
	}
}

// Fresh, kaydın taze (loaded ve stale değil) olup olmadığını döner.
func (c *Cache[V]) Fresh(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && e.loaded && !e.stale
}

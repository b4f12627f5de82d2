package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher, hub'ın dışarıya açık broadcast yüzeyi.
//
// Dependency Inversion: Kullanıcılar Hub'ın concrete struct'ına değil bu
// interface'e bağımlıdır — testlerde mock publisher kullanılabilir.
type EventPublisher interface {
	BroadcastToAll(event Event)
}

// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır (Observer pattern).
//
// Hub bilinçli olarak üyelik filtrelemesi YAPMAZ: new_message hint'i tüm
// bağlı client'lara gider, client kendi açık konuşmasıyla karşılaştırıp
// ilgisiz hint'leri yok sayar. Hint içerik taşımadığı için bu bir veri
// sızıntısı değildir ama konuşma id'lerinin varlığı gözlemlenebilir.
//
// register/unregister channel'ları Run() goroutine'inde işlenir — map
// mutasyonları tek noktadan geçer, broadcast'ler RLock ile eşzamanlı okur.
type Hub struct {
	// clients: bağlantı seti. Go'da set yoktur, map[*Client]bool kullanılır.
	clients map[*Client]bool

	// mu: clients map'ini koruyan read-write mutex.
	mu sync.RWMutex

	// register/unregister: Client giriş/çıkış sinyalleri.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	// atomic.Int64 — birden fazla goroutine güvenle artırabilir.
	seq atomic.Int64
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir client'ı Hub'a ekler.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	log.Printf("[ws] client connected: %s (total: %d)", client.label(), len(h.clients))
}

// removeClient, bir client'ı Hub'dan çıkarır ve send channel'ını kapatır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		close(client.send)
		log.Printf("[ws] client disconnected: %s (remaining: %d)", client.label(), len(h.clients))
	}
}

// BroadcastToAll, tüm bağlı client'lara event gönderir.
//
// At-most-once teslimat: Buffer'ı dolu (yavaş) client event'i almaz,
// bağlantısı kapatılır. Kaçan event telafi edilmez — client yeniden
// bağlanınca güncel durumu HTTP API'den çeker.
func (h *Hub) BroadcastToAll(event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Buffer dolu — bu client yavaş, kapat.
			// unregister'a goroutine ile yazılır: Run() removeClient içinde
			// h.mu.Lock beklerken biz RLock tutuyoruz — senkron yazım deadlock olur.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// ClientCount, bağlı client sayısını döner.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}

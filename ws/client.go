package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum mesaj boyutu (byte).
	maxMessageSize = 4096

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	// Buffer doluysa client yavaş demektir — bağlantı kapatılır.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen event'leri okur → Hub'a iletir
// - WritePump: Hub'dan gelen event'leri client'a yazar
//
// gorilla/websocket aynı anda tek okuma + tek yazma destekler; iki ayrı
// goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// username: opsiyonel kimlik. Bağlantıda ?token= ile veya sonradan
	// identify event'i ile set edilir. Boş kalabilir — kimliksiz client
	// da tam yetkili bir relay katılımcısıdır.
	username string
	userMu   sync.Mutex

	// send: client'a gönderilecek marshal edilmiş event buffer'ı.
	send chan []byte
	mu   sync.Mutex // conn.WriteMessage çağrılarını korur
}

// ReadPump, WebSocket bağlantısından gelen event'leri okur ve işler.
// Bağlantı kapanana kadar bloklar; kapanınca client Hub'dan çıkarılır.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// SetReadDeadline: Bu süre içinde mesaj gelmezse Read hata verir.
	// Her heartbeat geldiğinde deadline yenilenir.
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for %s: %v", c.label(), err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for %s: %v", c.label(), err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from %s: %v", c.label(), err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre işler.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for %s: %v", c.label(), err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpIdentify:
		c.handleIdentify(event)

	case OpMessageSent:
		c.handleMessageSent(event)

	default:
		log.Printf("[ws] unknown op from %s: %s", c.label(), event.Op)
	}
}

// handleIdentify, bağlantıya kullanıcı kimliği iliştirir.
// Tekrar gönderilebilir — son identify kazanır.
func (c *Client) handleIdentify(event Event) {
	// event.Data tipi any — doğrudan cast edilemez.
	// JSON'a çevirip tekrar parse etmek en güvenli yöntem.
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data IdentifyData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if data.Username == "" {
		return
	}

	c.userMu.Lock()
	c.username = data.Username
	c.userMu.Unlock()

	log.Printf("[ws] client identified as %s", data.Username)
}

// handleMessageSent, client'ın mesaj duyurusunu new_message hint'ine çevirir.
//
// Hub içeriği relay ETMEZ: gelen payload'da content/recipient_id olsa bile
// dışarı sadece conversation_id çıkar. Gerçek mesaj verisi HTTP API'nindir.
// Duyuru, gönderen dahil TÜM bağlı client'lara gider — gönderenin diğer
// tab'ları da listeyi tazeler.
func (c *Client) handleMessageSent(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data MessageSentData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if data.ConversationID == "" {
		log.Printf("[ws] message_sent without conversation_id from %s", c.label())
		return
	}

	c.hub.BroadcastToAll(Event{
		Op:   OpNewMessage,
		Data: NewMessageData{ConversationID: data.ConversationID},
	})
}

// sendEvent, client'a tek bir event gönderir.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for %s: %v", c.label(), err)
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer dolu — client muhtemelen donmuş, bağlantıyı kapat
		log.Printf("[ws] send buffer full for %s, dropping connection", c.label())
		c.hub.unregister <- c
	}
}

// WritePump, Hub'dan gelen event'leri WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma yasak.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// label, loglar için client etiketi — kimliği varsa username, yoksa "anonymous".
func (c *Client) label() string {
	c.userMu.Lock()
	defer c.userMu.Unlock()

	if c.username == "" {
		return "anonymous"
	}
	return c.username
}

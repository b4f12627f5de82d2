package client

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/akinalp/kurye/ws"
)

// relayConn, hub'a açık tek bir WebSocket bağlantısını sarar.
type relayConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex // gorilla/websocket eşzamanlı yazmaya izin vermez
	closeOnce sync.Once
}

// ConnectRelay, relay hub'ına bağlanır ve event dinleyicisini başlatır.
//
// wsURL örneği: "ws://localhost:9090/ws". Client'ta token varsa query
// parameter olarak eklenir (kimlikli bağlantı); yoksa anonim bağlanılır.
// username boş değilse bağlantı sonrası identify gönderilir — presence
// nicety'sidir, yetkilendirme değil.
//
// Gelen new_message event'leri cache invalidation'a çevrilir:
//   - konuşma listesi anahtarı HER event'te stale olur (yeni mesaj
//     listeyi yeniden sıralayabilir)
//   - açık konuşmanın id'si event'teki id ile eşleşiyorsa o konuşmanın
//     mesaj anahtarı da stale olur
//
// Event payload'ı cache'e asla yazılmaz; relay sadece "yeniden çek"
// sinyalidir.
func (c *Client) ConnectRelay(ctx context.Context, wsURL, username string) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return err
	}
	if token := c.token(); token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	r := &relayConn{conn: conn}

	c.mu.Lock()
	if c.relay != nil {
		c.relay.close()
	}
	c.relay = r
	c.mu.Unlock()

	if username != "" {
		r.send(ws.Event{Op: ws.OpIdentify, Data: ws.IdentifyData{Username: username}})
	}

	go c.readRelay(r)
	return nil
}

// CloseRelay, relay bağlantısını kapatır ve TÜM cache'i stale işaretler.
// Kaçan event replay edilmez — bir sonraki bağlantıda her şey şüphelidir,
// client kendi refetch'iyle resync olur.
func (c *Client) CloseRelay() {
	c.mu.Lock()
	r := c.relay
	c.relay = nil
	c.mu.Unlock()

	if r != nil {
		r.close()
	}
	c.conversations.InvalidateAll()
	c.messages.InvalidateAll()
}

// emitMessageSent, başarılı bir POST sonrası hub'a message_sent event'i
// gönderir. Relay bağlı değilse sessizce atlanır — mesaj zaten persist
// edildi, diğer client'lar bir sonraki poll'da görür.
func (c *Client) emitMessageSent(conversationID, content, recipientID string) {
	c.mu.Lock()
	r := c.relay
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.send(ws.Event{
		Op: ws.OpMessageSent,
		Data: ws.MessageSentData{
			ConversationID: conversationID,
			Content:        content,
			RecipientID:    recipientID,
		},
	})
}

// readRelay, hub'dan gelen event'leri okur ve invalidation uygular.
// Bağlantı koptuğunda sessizce döner — reconnect caller'ın sorumluluğu.
func (c *Client) readRelay(r *relayConn) {
	defer r.close()

	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			return
		}

		var event ws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[client] malformed relay event: %v", err)
			continue
		}

		if event.Op != ws.OpNewMessage {
			continue
		}

		var data ws.NewMessageData
		if payload, err := json.Marshal(event.Data); err == nil {
			_ = json.Unmarshal(payload, &data)
		}

		c.conversations.Invalidate(conversationListKey)
		if data.ConversationID != "" && data.ConversationID == c.openConversation() {
			c.messages.Invalidate(data.ConversationID)
		}
	}
}

// send, event'i JSON olarak yazar. Best-effort: hata loglanır, dönülmez.
func (r *relayConn) send(event ws.Event) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteJSON(event); err != nil {
		log.Printf("[client] relay write failed: %v", err)
	}
}

func (r *relayConn) close() {
	r.closeOnce.Do(func() {
		r.conn.Close()
	})
}

// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları yöneten merkezi yapı (Observer pattern)
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Relay akışı:
// 1. Kullanıcı mesajı HTTP POST ile gönderir → Service → DB kayıt
// 2. Client, WS üzerinden message_sent event'ini yayınlar
// 3. Hub, TÜM bağlı client'lara new_message hint'i iletir — hint sadece
//    konuşma id'si taşır, mesaj içeriği taşımaz
// 4. İlgilenen client'lar konuşmayı HTTP API'den yeniden çeker
//
// Hint best-effort'tur: bağlı olmayan client kaçırır, replay yoktur.
// Kaynak gerçeği her zaman HTTP API'dir.
package ws

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "message_sent", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq (sequence number): Her outbound event'e verilen artan sayı.
//   Client eksik event tespit etmek için seq'i takip eder.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
	// OpIdentify, bağlantıya opsiyonel kullanıcı kimliği iliştirir.
	// Yetkilendirme sınırı DEĞİLDİR — identify göndermeyen client da
	// broadcast alır. Sadece loglama/teşhis kolaylığı sağlar.
	OpIdentify = "identify"
	// OpMessageSent, client'ın "bir mesaj gönderdim" duyurusudur.
	// Hub içeriği doğrulamaz ve saklamaz — sadece new_message'a çevirir.
	OpMessageSent = "message_sent"
)

// Server → Client operasyonları
const (
	OpHeartbeatAck = "heartbeat_ack" // Heartbeat'e yanıt — "seni duydum"
	// OpNewMessage, tüm bağlı client'lara giden cache-invalidation hint'i.
	// Payload sadece conversation_id içerir; içerik HTTP API'den çekilir.
	OpNewMessage = "new_message"
)

// IdentifyData, identify event'inin payload'ı.
type IdentifyData struct {
	Username string `json:"username"`
}

// MessageSentData, message_sent event'inin payload'ı.
// Content ve RecipientID relay edilmez — hub yalnızca ConversationID'yi
// new_message hint'ine taşır.
type MessageSentData struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`
}

// NewMessageData, new_message event'inin payload'ı.
type NewMessageData struct {
	ConversationID string `json:"conversation_id"`
}

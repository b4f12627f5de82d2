package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Conversation, iki kullanıcı arasındaki 1:1 mesajlaşma konuşmasını temsil
// eder. Kendi içeriği yoktur — mesajların bağlandığı join noktasıdır.
//
// user1_id < user2_id sıralaması service katmanında sağlanır. Bu sayede
// UNIQUE(user1_id, user2_id) constraint'i sırasız kullanıcı çifti üzerinde
// teklik garantisi verir: aynı çift için ikinci konuşma oluşamaz.
//
// UpdatedAt her yeni mesajla birlikte aynı transaction'da güncellenir —
// konuşma listesinin "son aktivite" sıralama anahtarıdır ve her zaman
// konuşmadaki en yeni mesajın created_at'inden küçük olamaz.
type Conversation struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OtherUserID, verilen kullanıcının karşısındaki katılımcıyı döner.
func (c *Conversation) OtherUserID(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant, kullanıcının bu konuşmanın üyesi olup olmadığını döner.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Participant, bir kullanıcıyı bir konuşmaya bağlayan üyelik kaydı.
//
// ReadUntil watermark pattern'ıdır: her mesajı tek tek "okundu" işaretlemek
// yerine "bu zamana kadar okudum" bilgisi tutulur. ReadUntil'e eşit veya
// öncesindeki, katılımcının kendisinin göndermediği mesajlar okunmuş sayılır.
// Sadece ileri gider (monotonik).
type Participant struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	ReadUntil      *time.Time `json:"read_until"` // Nullable — henüz hiç okumadıysa nil
}

// LastMessage, konuşma listesinde gösterilen son mesaj özeti.
// IsFromMe çağıran kullanıcının perspektifinden hesaplanır.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	IsFromMe  bool      `json:"is_from_me"`
}

// ConversationSummary, konuşma listesi endpoint'inin tek satırı.
//
// Participants çağıran kullanıcıyı İÇERMEZ — frontend "kiminle konuşuyorum"
// bilgisini doğrudan render eder. 1:1 mesajlaşmada tek eleman içerir;
// dizi olarak dönülür çünkü API şekli katılımcı sayısından bağımsızdır.
type ConversationSummary struct {
	ID           string       `json:"id"`
	Participants []User       `json:"participants"`
	LastMessage  *LastMessage `json:"last_message"` // Nullable — tutarlılık için (ilk mesajla oluştuğundan pratikte hep dolu)
	UpdatedAt    time.Time    `json:"updated_at"`
}

// UnreadInfo, bir konuşmanın okunmamış mesaj bilgisini taşır.
// Frontend'de konuşma listesi badge'i için kullanılır.
type UnreadInfo struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
}

// CreateConversationRequest, "ilk mesajı gönder" isteği: konuşma bul-veya-oluştur
// + mesajı ekle, tek idempotent operasyon olarak.
type CreateConversationRequest struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

// Validate, CreateConversationRequest'in geçerli olup olmadığını kontrol eder.
// Mesaj içeriği trim sonrası boş olamaz — hangi alanın hatalı olduğu
// mesajda belirtilir.
func (r *CreateConversationRequest) Validate() error {
	if strings.TrimSpace(r.RecipientID) == "" {
		return fmt.Errorf("recipient_id is required")
	}

	r.Message = strings.TrimSpace(r.Message)
	contentLen := utf8.RuneCountInString(r.Message)
	if contentLen < 1 {
		return fmt.Errorf("message is required")
	}
	if contentLen > 2000 {
		return fmt.Errorf("message must be at most 2000 characters")
	}
	return nil
}

// CreateConversationResponse, bul-veya-oluştur operasyonunun yanıtı.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

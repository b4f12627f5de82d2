package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Message, bir konuşma mesajını temsil eder.
//
// Read alanı karşı tarafın okuma watermark'ı mesajı geçtiğinde true olur.
// Mesajlar bu sistemde asla düzenlenmez ve silinmez (append-only).
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`

	// JOIN ile doldurulur — mesaj listelerinde gönderen kimliği gömülü döner.
	Sender *User `json:"sender,omitempty"`
}

// CreateMessageRequest, mevcut konuşmaya yeni mesaj ekleme isteği.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// Validate, CreateMessageRequest'in geçerli olup olmadığını kontrol eder.
// İçerik trim sonrası boş olamaz; ilk-mesaj path'indeki kuralla aynıdır.
func (r *CreateMessageRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 {
		return fmt.Errorf("message content is required")
	}
	if contentLen > 2000 {
		return fmt.Errorf("message content must be at most 2000 characters")
	}
	return nil
}

package repository

import (
	"context"

	"github.com/akinalp/kurye/models"
)

// ConversationRepository, konuşma + katılımcı + mesaj veritabanı işlemleri
// için interface.
//
// Konuşma işlemleri:
//   - GetByUsers: İki kullanıcı arasındaki konuşmayı bul (sıralı çift)
//   - GetByID: ID ile konuşma bul
//   - ListSummaries: Kullanıcının konuşmalarını karşı taraf + son mesaj ile listele
//   - Create: Yeni konuşma + iki katılımcı kaydı oluştur
//
// Mesaj işlemleri:
//   - CreateMessage: Yeni mesaj ekle
//   - ListMessages: Konuşmanın tüm mesajlarını kronolojik sırayla getir
//
// Okuma durumu işlemleri:
//   - AdvanceReadUntil: Katılımcının watermark'ını ilerlet (sadece ileri)
//   - MarkMessagesRead: Karşı tarafın mesajlarını okundu işaretle
//   - UnreadCounts: Konuşma başına okunmamış mesaj sayıları
type ConversationRepository interface {
	// GetByUsers, sıralı (user1ID < user2ID) çift için konuşmayı döner.
	// Konuşma yoksa (nil, nil) döner — yokluk bir hata değildir.
	GetByUsers(ctx context.Context, user1ID, user2ID string) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	Create(ctx context.Context, conv *models.Conversation) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// TouchUpdatedAt, konuşmanın updated_at alanını şimdiki zamana çeker.
	// Mesaj ekleme ile aynı transaction içinde çağrılır.
	TouchUpdatedAt(ctx context.Context, conversationID string) error
	AdvanceReadUntil(ctx context.Context, conversationID, userID string) error
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) error
	UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error)
}

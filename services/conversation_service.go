package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
	"github.com/akinalp/kurye/repository"
)

// ConversationService, 1:1 konuşma ve mesaj iş kuralları.
//
// Üyelik modeli: Her konuşmanın tam iki katılımcısı vardır. Var olmayan
// konuşma ErrNotFound, var olup üye olunmayan konuşma ErrForbidden döner.
type ConversationService interface {
	// FindOrCreateConversation, iki kullanıcı arasındaki konuşmayı bulur
	// veya yoksa oluşturur ve ilk mesajı ekler. Tek bir idempotent
	// operasyondur: aynı çifte ikinci çağrı yeni konuşma açmaz, mevcut
	// konuşmaya mesaj ekler.
	FindOrCreateConversation(ctx context.Context, callerID string, req *models.CreateConversationRequest) (*models.CreateConversationResponse, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	// ListMessages, konuşmanın mesajlarını kronolojik sırayla döner.
	// Okundu işaretleme YAPMAZ — o ayrı bir adım (MarkConversationRead).
	ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
	// MarkConversationRead, kullanıcının watermark'ını şimdiye ilerletir ve
	// karşı tarafın mesajlarını okundu işaretler.
	MarkConversationRead(ctx context.Context, conversationID, userID string) error
	SendMessage(ctx context.Context, conversationID, userID string, req *models.CreateMessageRequest) (*models.Message, error)
	UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error)
}

// conversationService, ConversationService interface'inin implementasyonu.
type conversationService struct {
	db       *sql.DB // Transaction desteği (WithTx) için — create + ilk mesaj atomik çalışır
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
}

// NewConversationService, constructor.
func NewConversationService(
	db *sql.DB,
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
) ConversationService {
	return &conversationService{
		db:       db,
		convRepo: convRepo,
		userRepo: userRepo,
	}
}

// FindOrCreateConversation, konuşmayı bulur/oluşturur ve mesajı ekler.
//
// Yarış senaryosu: İki kullanıcı aynı anda birbirine ilk mesajı atarsa
// iki taraf da "konuşma yok" görüp INSERT dener. UNIQUE(user1_id, user2_id)
// kazananı belirler; kaybeden ErrAlreadyExists alır, kazanan konuşmayı
// yeniden okur ve mesajını ORAYA ekler. Sonuç: tek konuşma, iki mesaj.
func (s *conversationService) FindOrCreateConversation(ctx context.Context, callerID string, req *models.CreateConversationRequest) (*models.CreateConversationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if req.RecipientID == callerID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", pkg.ErrBadRequest)
	}

	// Alıcı var mı? Yoksa 404 — konuşma oluşturulmadan önce kontrol edilir.
	if _, err := s.userRepo.GetByID(ctx, req.RecipientID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: recipient not found", pkg.ErrNotFound)
		}
		return nil, err
	}

	user1ID, user2ID := sortUserPair(callerID, req.RecipientID)

	var resp models.CreateConversationResponse

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// Transaction-bound repository — aynı tx üzerinden çalışır
		txRepo := repository.NewSQLiteConversationRepo(tx)

		conv, err := txRepo.GetByUsers(ctx, user1ID, user2ID)
		if err != nil {
			return err
		}

		if conv == nil {
			conv = &models.Conversation{User1ID: user1ID, User2ID: user2ID}
			if err := txRepo.Create(ctx, conv); err != nil {
				if errors.Is(err, pkg.ErrAlreadyExists) {
					// Yarışı kaybettik — kazananın konuşmasını oku
					conv, err = txRepo.GetByUsers(ctx, user1ID, user2ID)
					if err != nil {
						return err
					}
					if conv == nil {
						return fmt.Errorf("conversation vanished after unique violation")
					}
				} else {
					return err
				}
			}
		}

		msg := &models.Message{
			ConversationID: conv.ID,
			SenderID:       callerID,
			Content:        req.Message,
		}
		if err := appendMessage(ctx, txRepo, msg); err != nil {
			return err
		}

		resp = models.CreateConversationResponse{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ListConversations, kullanıcının konuşmalarını son aktiviteye göre sıralı döner.
func (s *conversationService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	summaries, err := s.convRepo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range summaries {
		for j := range summaries[i].Participants {
			summaries[i].Participants[j].PasswordHash = ""
		}
	}
	return summaries, nil
}

// ListMessages, üyelik kontrolü yapar ve mesajları döner.
func (s *conversationService) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	return s.convRepo.ListMessages(ctx, conversationID)
}

// MarkConversationRead, okuma yan etkisini uygular.
//
// İki yazma tek transaction'da: watermark ilerletme + read bayrakları.
// Watermark monotoniktir — eski bir istek geç işlense bile geri gitmez
// (repository'deki UPDATE guard'ı).
func (s *conversationService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewSQLiteConversationRepo(tx)
		if err := txRepo.AdvanceReadUntil(ctx, conversationID, userID); err != nil {
			return err
		}
		return txRepo.MarkMessagesRead(ctx, conversationID, userID)
	})
}

// SendMessage, mevcut bir konuşmaya mesaj ekler.
func (s *conversationService) SendMessage(ctx context.Context, conversationID, userID string, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return appendMessage(ctx, repository.NewSQLiteConversationRepo(tx), msg)
	})
	if err != nil {
		return nil, err
	}

	// Response'ta gönderen bilgisi de olsun — frontend mesajı direkt ekler
	sender, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		sender.PasswordHash = ""
		msg.Sender = sender
	}

	return msg, nil
}

// UnreadCounts, kullanıcının konuşma başına okunmamış mesaj sayılarını döner.
func (s *conversationService) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error) {
	return s.convRepo.UnreadCounts(ctx, userID)
}

// ─── Private Helpers ───

// requireParticipant, konuşmayı yükler ve kullanıcının katılımcı olduğunu
// doğrular. Konuşma yoksa ErrNotFound, üye değilse ErrForbidden.
func (s *conversationService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}
	return nil
}

// appendMessage, mesaj ekleme yan etkileriyle birlikte:
// 1. Mesaj INSERT
// 2. Konuşmanın updated_at'i ilerler (liste sıralama anahtarı)
// 3. Gönderenin watermark'ı ilerler — kendi mesajın sana okunmamış görünmez
//
// Üç yazma aynı transaction'da olmalı; caller tx-bound repo geçirir.
func appendMessage(ctx context.Context, repo repository.ConversationRepository, msg *models.Message) error {
	if err := repo.CreateMessage(ctx, msg); err != nil {
		return err
	}
	if err := repo.TouchUpdatedAt(ctx, msg.ConversationID); err != nil {
		return err
	}
	return repo.AdvanceReadUntil(ctx, msg.ConversationID, msg.SenderID)
}

// sortUserPair, iki user id'yi sıralı döner — UNIQUE(user1_id, user2_id)
// constraint'inin sırasız çift üzerinde çalışması için.
func sortUserPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

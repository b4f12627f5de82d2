package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
)

// sqliteConversationRepo, ConversationRepository interface'inin SQLite
// implementasyonu.
type sqliteConversationRepo struct {
	db database.TxQuerier
}

// NewSQLiteConversationRepo, constructor — interface döner.
func NewSQLiteConversationRepo(db database.TxQuerier) ConversationRepository {
	return &sqliteConversationRepo{db: db}
}

// ─── Conversation Operations ───

// GetByUsers, iki kullanıcı arasındaki konuşmayı döner.
// user1ID ve user2ID sıralı gelmeli (service katmanında sağlanır).
func (r *sqliteConversationRepo) GetByUsers(ctx context.Context, user1ID, user2ID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user1_id, user2_id, created_at, updated_at FROM conversations WHERE user1_id = ? AND user2_id = ?",
		user1ID, user2ID,
	).Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Konuşma yok — nil döner (hata değil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation by users: %w", err)
	}
	return &conv, nil
}

// GetByID, ID ile konuşmayı döner.
func (r *sqliteConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user1_id, user2_id, created_at, updated_at FROM conversations WHERE id = ?",
		id,
	).Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListSummaries, bir kullanıcının tüm konuşmalarını karşı taraf bilgisi ve
// son mesaj ile döner.
//
// JOIN mantığı:
// conversations.user1_id veya user2_id eşleşen konuşmaları bul,
// karşı tarafı (eşleşmeyen user) users tablosuyla JOIN et.
// Son mesaj LEFT JOIN ile gelir — ilk mesaj hiç atılmamışsa NULL.
// updated_at DESC sıralama: en son aktivite gören konuşma üstte.
func (r *sqliteConversationRepo) ListSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.updated_at,
			u.id, u.username, u.display_name, u.avatar_url,
			m.content, m.sender_id, m.created_at
		FROM conversations c
		JOIN users u ON u.id = CASE
			WHEN c.user1_id = ? THEN c.user2_id
			ELSE c.user1_id
		END
		LEFT JOIN messages m ON m.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		WHERE c.user1_id = ? OR c.user2_id = ?
		ORDER BY c.updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		var other models.User
		var lastContent, lastSenderID sql.NullString
		var lastCreatedAt sql.NullTime

		if err := rows.Scan(
			&s.ID, &s.UpdatedAt,
			&other.ID, &other.Username, &other.DisplayName, &other.AvatarURL,
			&lastContent, &lastSenderID, &lastCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		s.Participants = []models.User{other}
		if lastContent.Valid {
			s.LastMessage = &models.LastMessage{
				Content:   lastContent.String,
				CreatedAt: lastCreatedAt.Time.UTC(),
				IsFromMe:  lastSenderID.String == userID,
			}
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	return summaries, nil
}

// Create, yeni bir konuşma ve iki katılımcı kaydını oluşturur.
//
// Transaction içinde çağrılmalıdır (service katmanı database.WithTx kullanır) —
// konuşma satırı yazılıp katılımcı satırları yazılamazsa yarım kayıt kalmamalı.
// UNIQUE(user1_id, user2_id) ihlali pkg.ErrAlreadyExists ile döner; caller
// yarışı kaybettiğini anlayıp kazanan konuşmayı yeniden okur.
func (r *sqliteConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO conversations (id, user1_id, user2_id) VALUES (?, ?, ?) RETURNING created_at, updated_at",
		conv.ID, conv.User1ID, conv.User2ID,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: conversation already exists", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?), (?, ?)",
		conv.ID, conv.User1ID, conv.ID, conv.User2ID,
	)
	if err != nil {
		return fmt.Errorf("failed to create participants: %w", err)
	}

	return nil
}

// ─── Message Operations ───

// CreateMessage, yeni bir mesaj ekler.
func (r *sqliteConversationRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_id, content) VALUES (?, ?, ?, ?) RETURNING created_at",
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content,
	).Scan(&msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	// created_at SQLite default — timezone issue fix
	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}

// ListMessages, konuşmanın tüm mesajlarını gönderen bilgisiyle, eskiden
// yeniye sıralı döner.
//
// created_at saniye çözünürlüklü olduğu için aynı saniyedeki mesajlarda
// id ikincil sıralama anahtarıdır — insert sırası deterministik korunmaz
// ama sıralama stabil kalır.
func (r *sqliteConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.read, m.created_at,
			u.id, u.username, u.display_name, u.avatar_url
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var sender models.User

		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Read, &msg.CreatedAt,
			&sender.ID, &sender.Username, &sender.DisplayName, &sender.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.CreatedAt = msg.CreatedAt.UTC()
		msg.Sender = &sender
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// ─── Read State Operations ───

// TouchUpdatedAt, konuşmanın son aktivite zamanını günceller.
func (r *sqliteConversationRepo) TouchUpdatedAt(ctx context.Context, conversationID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

// AdvanceReadUntil, katılımcının okuma watermark'ını şimdiki zamana ilerletir.
//
// Upsert pattern (ON CONFLICT DO UPDATE) + monotonluk guard'ı:
// watermark sadece ileri gider, geç gelen bir istek onu geri çekemez.
// Tüm zaman damgaları CURRENT_TIMESTAMP'ten üretilir — messages.created_at
// ile aynı formatta olduğu için karşılaştırmalar güvenlidir.
func (r *sqliteConversationRepo) AdvanceReadUntil(ctx context.Context, conversationID, userID string) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id, read_until)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(conversation_id, user_id)
		DO UPDATE SET read_until = excluded.read_until
		WHERE read_until IS NULL OR read_until < excluded.read_until`

	_, err := r.db.ExecContext(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to advance read watermark: %w", err)
	}
	return nil
}

// MarkMessagesRead, karşı tarafın gönderdiği okunmamış mesajları okundu
// işaretler. Kullanıcının kendi mesajları değişmez.
func (r *sqliteConversationRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE messages SET read = 1 WHERE conversation_id = ? AND sender_id != ? AND read = 0",
		conversationID, readerID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// UnreadCounts, kullanıcının konuşma başına okunmamış mesaj sayılarını döner.
//
// Sorgu mantığı:
// 1. Kullanıcının katılımcı olduğu konuşmaları al
// 2. Okunmamış sayısı = watermark'tan (read_until) sonraki, karşı tarafın mesajları
// 3. Watermark hiç yoksa tüm karşı-taraf mesajları okunmamış sayılır
// 4. Sadece okunmamış > 0 olan konuşmalar döner
//
// Kullanıcının KENDİ mesajları hariç tutulur — kendi yazdığın mesaj
// "okunmamış" sayılmamalı.
func (r *sqliteConversationRepo) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error) {
	query := `
		SELECT id, unread_count FROM (
			SELECT c.id,
			       (SELECT COUNT(*) FROM messages m
			        WHERE m.conversation_id = c.id
			          AND m.sender_id != ?
			          AND (cp.read_until IS NULL OR m.created_at > cp.read_until)
			       ) as unread_count
			FROM conversations c
			JOIN conversation_participants cp
			  ON cp.conversation_id = c.id AND cp.user_id = ?
		) WHERE unread_count > 0`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	var unreads []models.UnreadInfo
	for rows.Next() {
		var info models.UnreadInfo
		if err := rows.Scan(&info.ConversationID, &info.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan unread info: %w", err)
		}
		unreads = append(unreads, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread rows: %w", err)
	}

	if unreads == nil {
		unreads = []models.UnreadInfo{}
	}
	return unreads, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
	"github.com/akinalp/kurye/repository"
)

// convFixture, gerçek SQLite üzerinde kurulmuş service ve test kullanıcıları.
type convFixture struct {
	svc      ConversationService
	db       *sql.DB
	userRepo repository.UserRepository
	alice    *models.User
	bob      *models.User
}

func newConvFixture(t *testing.T) *convFixture {
	t.Helper()

	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("failed to sub migrations fs: %v", err)
	}
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrationsFS)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	convRepo := repository.NewSQLiteConversationRepo(db.Conn)

	f := &convFixture{
		svc:      NewConversationService(db.Conn, convRepo, userRepo),
		db:       db.Conn,
		userRepo: userRepo,
		alice:    &models.User{Username: "alice", PasswordHash: "x"},
		bob:      &models.User{Username: "bob", PasswordHash: "x"},
	}
	for _, u := range []*models.User{f.alice, f.bob} {
		if err := userRepo.Create(context.Background(), u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}
	return f
}

func (f *convFixture) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x"}
	if err := f.userRepo.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func TestFindOrCreateConversation(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	resp, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
		RecipientID: f.bob.ID,
		Message:     "merhaba",
	})
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}
	if resp.ConversationID == "" || resp.MessageID == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}

	t.Run("second call reuses the conversation", func(t *testing.T) {
		resp2, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
			RecipientID: f.bob.ID,
			Message:     "tekrar",
		})
		if err != nil {
			t.Fatalf("FindOrCreateConversation failed: %v", err)
		}
		if resp2.ConversationID != resp.ConversationID {
			t.Errorf("expected same conversation, got %s and %s", resp.ConversationID, resp2.ConversationID)
		}
	})

	t.Run("reverse direction hits the same conversation", func(t *testing.T) {
		resp3, err := f.svc.FindOrCreateConversation(ctx, f.bob.ID, &models.CreateConversationRequest{
			RecipientID: f.alice.ID,
			Message:     "selam",
		})
		if err != nil {
			t.Fatalf("FindOrCreateConversation failed: %v", err)
		}
		if resp3.ConversationID != resp.ConversationID {
			t.Error("unordered pair must map to one conversation")
		}
	})

	t.Run("all messages landed in one conversation", func(t *testing.T) {
		messages, err := f.svc.ListMessages(ctx, resp.ConversationID, f.alice.ID)
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(messages) != 3 {
			t.Errorf("got %d messages, want 3", len(messages))
		}
	})
}

func TestFindOrCreateConversationRejections(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	t.Run("self message", func(t *testing.T) {
		_, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
			RecipientID: f.alice.ID,
			Message:     "yalnızlık",
		})
		if !errors.Is(err, pkg.ErrBadRequest) {
			t.Errorf("got %v, want ErrBadRequest", err)
		}
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
			RecipientID: "ghost",
			Message:     "kimse var mı",
		})
		if !errors.Is(err, pkg.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
			RecipientID: f.bob.ID,
			Message:     "   ",
		})
		if !errors.Is(err, pkg.ErrBadRequest) {
			t.Errorf("got %v, want ErrBadRequest", err)
		}
	})
}

func TestSendMessage(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	resp, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
		RecipientID: f.bob.ID,
		Message:     "ilk",
	})
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}

	msg, err := f.svc.SendMessage(ctx, resp.ConversationID, f.bob.ID, &models.CreateMessageRequest{Content: "cevap"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID == "" || msg.Content != "cevap" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Sender == nil || msg.Sender.Username != "bob" {
		t.Errorf("sender should be embedded: %+v", msg.Sender)
	}
	if msg.Sender != nil && msg.Sender.PasswordHash != "" {
		t.Error("password hash must never leave the service layer")
	}

	t.Run("non participant is forbidden", func(t *testing.T) {
		carol := f.addUser(t, "carol")
		_, err := f.svc.SendMessage(ctx, resp.ConversationID, carol.ID, &models.CreateMessageRequest{Content: "ben de varım"})
		if !errors.Is(err, pkg.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := f.svc.SendMessage(ctx, "missing", f.alice.ID, &models.CreateMessageRequest{Content: "nereye"})
		if !errors.Is(err, pkg.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := f.svc.SendMessage(ctx, resp.ConversationID, f.alice.ID, &models.CreateMessageRequest{Content: "  "})
		if !errors.Is(err, pkg.ErrBadRequest) {
			t.Errorf("got %v, want ErrBadRequest", err)
		}
	})
}

func TestListMessagesAuthorization(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	resp, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
		RecipientID: f.bob.ID,
		Message:     "gizli",
	})
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}

	carol := f.addUser(t, "carol")

	if _, err := f.svc.ListMessages(ctx, resp.ConversationID, carol.ID); !errors.Is(err, pkg.ErrForbidden) {
		t.Errorf("outsider read: got %v, want ErrForbidden", err)
	}
	if _, err := f.svc.ListMessages(ctx, "missing", f.alice.ID); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("missing conversation: got %v, want ErrNotFound", err)
	}
}

func TestReadFlow(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	resp, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
		RecipientID: f.bob.ID,
		Message:     "okunmamış",
	})
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}

	t.Run("recipient sees unread, sender does not", func(t *testing.T) {
		unreads, err := f.svc.UnreadCounts(ctx, f.bob.ID)
		if err != nil {
			t.Fatalf("UnreadCounts failed: %v", err)
		}
		if len(unreads) != 1 || unreads[0].UnreadCount != 1 {
			t.Fatalf("unexpected unread for bob: %+v", unreads)
		}

		own, err := f.svc.UnreadCounts(ctx, f.alice.ID)
		if err != nil {
			t.Fatalf("UnreadCounts failed: %v", err)
		}
		if len(own) != 0 {
			t.Errorf("sender should have no unread, got %+v", own)
		}
	})

	t.Run("mark read clears unread and flags messages", func(t *testing.T) {
		if err := f.svc.MarkConversationRead(ctx, resp.ConversationID, f.bob.ID); err != nil {
			t.Fatalf("MarkConversationRead failed: %v", err)
		}

		unreads, err := f.svc.UnreadCounts(ctx, f.bob.ID)
		if err != nil {
			t.Fatalf("UnreadCounts failed: %v", err)
		}
		if len(unreads) != 0 {
			t.Errorf("unread should be cleared, got %+v", unreads)
		}

		messages, err := f.svc.ListMessages(ctx, resp.ConversationID, f.bob.ID)
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if !messages[0].Read {
			t.Error("alice's message should be flagged read after bob reads")
		}
	})

	t.Run("outsider cannot mark read", func(t *testing.T) {
		carol := f.addUser(t, "carol")
		err := f.svc.MarkConversationRead(ctx, resp.ConversationID, carol.ID)
		if !errors.Is(err, pkg.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})
}

func TestListConversations(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()

	if _, err := f.svc.FindOrCreateConversation(ctx, f.alice.ID, &models.CreateConversationRequest{
		RecipientID: f.bob.ID,
		Message:     "hey bob",
	}); err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}

	summaries, err := f.svc.ListConversations(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}

	s := summaries[0]
	if len(s.Participants) != 1 || s.Participants[0].Username != "bob" {
		t.Errorf("participants should contain only the counterpart: %+v", s.Participants)
	}
	if s.Participants[0].PasswordHash != "" {
		t.Error("password hash must be cleared")
	}
	if s.LastMessage == nil || s.LastMessage.Content != "hey bob" {
		t.Errorf("last message missing: %+v", s.LastMessage)
	}
	if !s.LastMessage.IsFromMe {
		t.Error("alice sent the last message, is_from_me should be true")
	}

	t.Run("outsider sees nothing", func(t *testing.T) {
		carol := f.addUser(t, "carol")
		summaries, err := f.svc.ListConversations(ctx, carol.ID)
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(summaries) != 0 {
			t.Errorf("carol should see no conversations, got %+v", summaries)
		}
	})
}

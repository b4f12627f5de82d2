package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/handlers"
	"github.com/akinalp/kurye/middleware"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg/cache"
	"github.com/akinalp/kurye/pkg/ratelimit"
	"github.com/akinalp/kurye/repository"
	"github.com/akinalp/kurye/services"
)

// apiFixture, gerçek DB ve tüm katmanlarla ayağa kalkmış test API'si.
type apiFixture struct {
	server       *httptest.Server
	loginLimiter *ratelimit.LoginRateLimiter
}

// newAPIFixture, production route tablosunun birebir kopyasını httptest
// üzerinde kurar. Rate limiter'lar test dostu küçük limitlerle gelir.
func newAPIFixture(t *testing.T) *apiFixture {
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
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)
	convRepo := repository.NewSQLiteConversationRepo(db.Conn)

	profileCache := cache.New[string, *models.User](time.Minute, time.Minute)
	t.Cleanup(profileCache.Close)

	authService := services.NewAuthService(userRepo, sessionRepo, "test-secret", 15, 7)
	convService := services.NewConversationService(db.Conn, convRepo, userRepo)
	userService := services.NewUserService(userRepo, profileCache)

	loginLimiter := ratelimit.NewLoginRateLimiter(3, time.Minute)
	t.Cleanup(loginLimiter.Close)
	messageLimiter := ratelimit.NewMessageRateLimiter(100, time.Minute, time.Minute)
	t.Cleanup(messageLimiter.Close)

	authHandler := handlers.NewAuthHandler(authService, loginLimiter)
	convHandler := handlers.NewConversationHandler(convService, messageLimiter)
	userHandler := handlers.NewUserHandler(userService)

	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/users/me", auth(authHandler.Me))
	mux.Handle("GET /api/users/search", auth(userHandler.Search))
	mux.Handle("GET /api/users/{id}", auth(userHandler.GetProfile))
	mux.Handle("GET /api/conversations", auth(convHandler.List))
	mux.Handle("POST /api/conversations", auth(convHandler.Create))
	mux.Handle("GET /api/conversations/unread", auth(convHandler.UnreadCounts))
	mux.Handle("GET /api/conversations/{id}/messages", auth(convHandler.ListMessages))
	mux.Handle("POST /api/conversations/{id}/messages", auth(convHandler.SendMessage))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, loginLimiter: loginLimiter}
}

// request, JSON body'li bir istek atar ve status + decoded envelope döner.
func (f *apiFixture) request(t *testing.T, method, path, token string, body any) (int, json.RawMessage, string) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequest(method, f.server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}

	return resp.StatusCode, envelope.Data, envelope.Error
}

// register, kullanıcı kaydeder ve access token + user id döner.
func (f *apiFixture) register(t *testing.T, username string) (string, string) {
	t.Helper()

	status, data, errMsg := f.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "supersecret",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, error %q", username, status, errMsg)
	}

	var tokens struct {
		AccessToken string      `json:"access_token"`
		User        models.User `json:"user"`
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		t.Fatalf("failed to decode tokens: %v", err)
	}
	return tokens.AccessToken, tokens.User.ID
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	token, _ := f.register(t, "alice")

	t.Run("me returns the authenticated user", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/users/me", token, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var user models.User
		if err := json.Unmarshal(data, &user); err != nil {
			t.Fatalf("failed to decode user: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("login with correct credentials", func(t *testing.T) {
		status, _, _ := f.request(t, "POST", "/api/auth/login", "", map[string]string{
			"username": "alice", "password": "supersecret",
		})
		if status != http.StatusOK {
			t.Errorf("status %d, want 200", status)
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		status, _, _ := f.request(t, "POST", "/api/auth/login", "", map[string]string{
			"username": "alice", "password": "nope",
		})
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		status, _, _ := f.request(t, "GET", "/api/users/me", "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		status, _, _ := f.request(t, "GET", "/api/users/me", "garbage", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
	})
}

func TestLoginRateLimit(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice")

	// Limit 3/dk — dördüncü deneme 429 + Retry-After
	for i := 0; i < 3; i++ {
		f.request(t, "POST", "/api/auth/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
	}

	req, _ := http.NewRequest("POST", f.server.URL+"/api/auth/login",
		bytes.NewBufferString(`{"username":"alice","password":"wrong"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestConversationFlow(t *testing.T) {
	f := newAPIFixture(t)

	aliceToken, aliceID := f.register(t, "alice")
	bobToken, bobID := f.register(t, "bob")

	// Alice ilk mesajı atar — konuşma oluşur
	status, data, errMsg := f.request(t, "POST", "/api/conversations", aliceToken, map[string]string{
		"recipient_id": bobID,
		"message":      "merhaba bob",
	})
	if status != http.StatusCreated {
		t.Fatalf("create conversation: status %d, error %q", status, errMsg)
	}
	var created models.CreateConversationResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// Okuma testi bob'un ilk göndermesinden ÖNCE koşmalı — bob mesaj
	// atarsa kendi watermark'ı ilerler ve alice'in mesajı okunmuş sayılır.
	t.Run("bob sees unread then reads", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/conversations/unread", bobToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var unreads []models.UnreadInfo
		if err := json.Unmarshal(data, &unreads); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(unreads) != 1 {
			t.Fatalf("bob should have unread, got %+v", unreads)
		}

		// Mesajları listelemek okuma yan etkisini tetikler
		status, data, _ = f.request(t, "GET",
			fmt.Sprintf("/api/conversations/%s/messages", created.ConversationID), bobToken, nil)
		if status != http.StatusOK {
			t.Fatalf("list messages: status %d", status)
		}
		var messages []models.Message
		if err := json.Unmarshal(data, &messages); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(messages) != 1 {
			t.Fatalf("got %d messages, want 1", len(messages))
		}
		if messages[0].Sender == nil || messages[0].Sender.Username != "alice" {
			t.Error("sender should be embedded")
		}

		status, data, _ = f.request(t, "GET", "/api/conversations/unread", bobToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		if err := json.Unmarshal(data, &unreads); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(unreads) != 0 {
			t.Errorf("unread should be cleared after reading, got %+v", unreads)
		}
	})

	t.Run("same pair maps to same conversation", func(t *testing.T) {
		status, data, _ := f.request(t, "POST", "/api/conversations", bobToken, map[string]string{
			"recipient_id": aliceID,
			"message":      "selam alice",
		})
		if status != http.StatusCreated {
			t.Fatalf("status %d", status)
		}
		var resp models.CreateConversationResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if resp.ConversationID != created.ConversationID {
			t.Error("expected find-or-create to reuse the conversation")
		}
	})

	t.Run("append message", func(t *testing.T) {
		status, data, _ := f.request(t, "POST",
			fmt.Sprintf("/api/conversations/%s/messages", created.ConversationID), aliceToken,
			map[string]string{"content": "nasılsın"})
		if status != http.StatusCreated {
			t.Fatalf("status %d", status)
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if msg.Content != "nasılsın" {
			t.Errorf("unexpected message: %+v", msg)
		}
	})

	t.Run("conversation list shows counterpart and last message", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/conversations", aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var summaries []models.ConversationSummary
		if err := json.Unmarshal(data, &summaries); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("got %d summaries, want 1", len(summaries))
		}
		if summaries[0].Participants[0].Username != "bob" {
			t.Errorf("counterpart should be bob: %+v", summaries[0].Participants)
		}
		if summaries[0].LastMessage == nil || summaries[0].LastMessage.Content != "nasılsın" {
			t.Errorf("unexpected last message: %+v", summaries[0].LastMessage)
		}
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		carolToken, _ := f.register(t, "carol")

		status, _, _ := f.request(t, "GET",
			fmt.Sprintf("/api/conversations/%s/messages", created.ConversationID), carolToken, nil)
		if status != http.StatusForbidden {
			t.Errorf("outsider read: status %d, want 403", status)
		}

		status, _, _ = f.request(t, "POST",
			fmt.Sprintf("/api/conversations/%s/messages", created.ConversationID), carolToken,
			map[string]string{"content": "sızma denemesi"})
		if status != http.StatusForbidden {
			t.Errorf("outsider write: status %d, want 403", status)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		status, _, _ := f.request(t, "POST", "/api/conversations", aliceToken, map[string]string{
			"recipient_id": bobID, "message": "   ",
		})
		if status != http.StatusBadRequest {
			t.Errorf("empty message: status %d, want 400", status)
		}

		status, _, _ = f.request(t, "POST", "/api/conversations", aliceToken, map[string]string{
			"recipient_id": "ghost", "message": "merhaba",
		})
		if status != http.StatusNotFound {
			t.Errorf("unknown recipient: status %d, want 404", status)
		}
	})
}

func TestUserEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	aliceToken, _ := f.register(t, "alice")
	_, bobID := f.register(t, "bobby")

	t.Run("profile lookup", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/users/"+bobID, aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var user models.User
		if err := json.Unmarshal(data, &user); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if user.Username != "bobby" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("profile not found", func(t *testing.T) {
		status, _, _ := f.request(t, "GET", "/api/users/ghost", aliceToken, nil)
		if status != http.StatusNotFound {
			t.Errorf("status %d, want 404", status)
		}
	})

	t.Run("search", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/users/search?q=bob", aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var users []models.User
		if err := json.Unmarshal(data, &users); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(users) != 1 || users[0].Username != "bobby" {
			t.Errorf("unexpected result: %+v", users)
		}
	})

	t.Run("short query returns empty list", func(t *testing.T) {
		status, data, _ := f.request(t, "GET", "/api/users/search?q=b", aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		var users []models.User
		if err := json.Unmarshal(data, &users); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("got %d users, want 0", len(users))
		}
	})
}

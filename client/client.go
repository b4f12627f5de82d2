package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/akinalp/kurye/models"
)

// Cache anahtarı sabitleri. Konuşma listesi tek kayıtlıdır; mesaj
// cache'i conversation id ile anahtarlanır.
const conversationListKey = "conversations"

// Client, kurye API'sine erişen HTTP client + cache katmanı.
//
// Konuşma listesi ve mesajlar cache üzerinden okunur; profil ve arama
// gibi uçucu sorgular doğrudan API'ye gider. Relay bağlantısı (relay.go)
// cache'i invalidate eder, asla doldurmaz.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	openConvID  string // Şu an ekranda açık olan konuşma — relay filtresi için

	conversations *Cache[[]models.ConversationSummary]
	messages      *Cache[[]models.Message]

	relay *relayConn
}

// New, yeni bir API client oluşturur.
// baseURL örneği: "http://localhost:9090"
func New(baseURL string) *Client {
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		conversations: NewCache[[]models.ConversationSummary](),
		messages:      NewCache[[]models.Message](),
	}
}

// SetToken, Authorization header'ında kullanılacak access token'ı ayarlar.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// SetOpenConversation, UI'da açık olan konuşmayı işaretler.
// Relay'den gelen new_message event'i yalnızca açık konuşmanın mesaj
// cache'ini invalidate eder — kapalı konuşmalar zaten bir sonraki
// açılışta taze çekilir.
func (c *Client) SetOpenConversation(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openConvID = conversationID
}

func (c *Client) openConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openConvID
}

// Login, kullanıcı girişi yapar ve access token'ı client'a kaydeder.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var out struct {
		AccessToken  string       `json:"access_token"`
		RefreshToken string       `json:"refresh_token"`
		User         *models.User `json:"user"`
	}
	body := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return out.User, nil
}

// Conversations, çağıran kullanıcının konuşma listesini döner.
// Cache tazeyse API'ye gidilmez.
func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return c.conversations.Get(ctx, conversationListKey, func(ctx context.Context) ([]models.ConversationSummary, error) {
		var out []models.ConversationSummary
		if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Messages, konuşmanın mesajlarını kronolojik sırayla döner.
// Sunucu tarafında okuma yan etkisi vardır (watermark ilerler).
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return c.messages.Get(ctx, conversationID, func(ctx context.Context) ([]models.Message, error) {
		var out []models.Message
		path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// StartConversation, alıcıyla konuşmayı bulur/oluşturur ve ilk mesajı
// gönderir. Lokal mutation kendi cache anahtarlarını invalidate eder.
func (c *Client) StartConversation(ctx context.Context, recipientID, message string) (*models.CreateConversationResponse, error) {
	body := models.CreateConversationRequest{RecipientID: recipientID, Message: message}
	var out models.CreateConversationResponse
	if err := c.do(ctx, http.MethodPost, "/api/conversations", body, &out); err != nil {
		return nil, err
	}

	c.conversations.Invalidate(conversationListKey)
	c.messages.Invalidate(out.ConversationID)
	c.emitMessageSent(out.ConversationID, message, recipientID)
	return &out, nil
}

// SendMessage, mevcut konuşmaya mesaj ekler.
//
// Başarısız gönderimde cache'e DOKUNULMAZ — eski state ekranda kalır,
// kullanıcı içeriği kaybetmeden yeniden dener.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	body := models.CreateMessageRequest{Content: content}
	var out models.Message
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}

	c.conversations.Invalidate(conversationListKey)
	c.messages.Invalidate(conversationID)
	c.emitMessageSent(conversationID, content, "")
	return &out, nil
}

// UnreadCounts, konuşma başına okunmamış mesaj sayılarını döner.
func (c *Client) UnreadCounts(ctx context.Context) ([]models.UnreadInfo, error) {
	var out []models.UnreadInfo
	if err := c.do(ctx, http.MethodGet, "/api/conversations/unread", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser, public profil bilgisini döner. Cache'lenmez — sunucu tarafında
// zaten kısa TTL'li profil cache'i vardır.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchUsers, username üzerinde substring araması yapar.
// 2 karakterden kısa sorgular sunucuda boş liste döner.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var out []models.User
	path := "/api/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// APIError, başarısız bir API yanıtını temsil eder.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// do, tek bir API çağrısı yapar: request body'yi serialize eder,
// Authorization header'ını ekler, response envelope'unu açar.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Sunucu her yanıtı APIResponse envelope'unda döner.
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
	"github.com/akinalp/kurye/pkg/ratelimit"
	"github.com/akinalp/kurye/services"
)

// ConversationHandler, konuşma ve mesaj endpoint'leri.
type ConversationHandler struct {
	convService    services.ConversationService
	messageLimiter *ratelimit.MessageRateLimiter
}

// NewConversationHandler, constructor.
// messageLimiter: Mesaj spam koruması. nil ise rate limiting devre dışı kalır.
func NewConversationHandler(convService services.ConversationService, messageLimiter *ratelimit.MessageRateLimiter) *ConversationHandler {
	return &ConversationHandler{
		convService:    convService,
		messageLimiter: messageLimiter,
	}
}

// List godoc
// GET /api/conversations
// Kullanıcının konuşmaları, son aktiviteye göre sıralı.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	summaries, err := h.convService.ListConversations(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, summaries)
}

// Create godoc
// POST /api/conversations
// Body: { "recipient_id": "...", "message": "..." }
//
// Find-or-create: Aynı çifte ikinci istek yeni konuşma açmaz, mevcut
// konuşmaya mesajı ekler. Response her iki durumda da aynı şekildedir.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if !h.allowMessage(w, user.ID) {
		return
	}

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.convService.FindOrCreateConversation(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, resp)
}

// ListMessages godoc
// GET /api/conversations/{id}/messages
//
// Mesajları dönmenin yanında okuma yan etkisi vardır: kullanıcının
// watermark'ı ilerler, karşı tarafın mesajları okundu işaretlenir.
// Okundu işaretleme listelemeden SONRA ayrı bir adımda çalışır — read
// bayrakları bu response'ta değil bir sonraki okumada değişmiş görünür.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	conversationID := r.PathValue("id")

	messages, err := h.convService.ListMessages(r.Context(), conversationID, user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.convService.MarkConversationRead(r.Context(), conversationID, user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

// SendMessage godoc
// POST /api/conversations/{id}/messages
// Body: { "content": "..." }
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if !h.allowMessage(w, user.ID) {
		return
	}

	conversationID := r.PathValue("id")

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.convService.SendMessage(r.Context(), conversationID, user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, msg)
}

// UnreadCounts godoc
// GET /api/conversations/unread
// Konuşma başına okunmamış mesaj sayıları (sadece > 0 olanlar).
func (h *ConversationHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	unreads, err := h.convService.UnreadCounts(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, unreads)
}

// allowMessage, mesaj rate limit kontrolü. Limit aşılmışsa 429 yazar ve
// false döner.
func (h *ConversationHandler) allowMessage(w http.ResponseWriter, userID string) bool {
	if h.messageLimiter == nil || h.messageLimiter.Allow(userID) {
		return true
	}

	cooldown := h.messageLimiter.CooldownSeconds(userID)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", cooldown))
	pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
		fmt.Sprintf("sending messages too fast, wait %d second(s)", cooldown))
	return false
}

package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/akinalp/kurye/models"
)

// TokenValidator, WebSocket handler'ın JWT doğrulaması için kullandığı interface.
//
// Neden services.AuthService yerine kendi interface'imiz?
// Circular dependency önlemek için — services paketi ws'e bağımlı olabilir,
// ws'in services'e bağımlı olması döngü yaratır. Ayrıca handler'ın tüm
// AuthService metodlarına ihtiyacı yok; ValidateAccessToken yeterli (ISP).
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// upgrader, HTTP bağlantısını WebSocket bağlantısına yükseltir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin: Production'da domain kontrolü yapılmalı.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
}

// NewHandler, yeni bir WebSocket handler oluşturur.
func NewHandler(hub *Hub, tokenValidator TokenValidator) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
	}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir ve client'ı
// Hub'a kaydeder.
//
// Token OPSİYONELDİR: relay bir yetkilendirme sınırı değildir, kimliksiz
// bağlantı da broadcast alır. ?token= verilirse doğrulanır ve bağlantıya
// kimlik iliştirilir (identify event'inin eşdeğeri); geçersiz token yine
// de reddedilir — yanlış kimlikle bağlanmaktansa kimliksiz bağlanılmalı.
//
//	ws://server/ws            → anonim bağlantı
//	ws://server/ws?token=JWT  → kimlikli bağlantı
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var username string

	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.tokenValidator.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		username = claims.Username
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		username: username,
		send:     make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	// WritePump ayrı goroutine'de, ReadPump bu goroutine'de çalışır.
	// ReadPump bağlantı kapanana kadar bloklar — handler erken dönmez.
	go client.WritePump()
	client.ReadPump()
}

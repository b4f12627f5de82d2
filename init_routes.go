// Package main — HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
package main

import (
	"net/http"

	"github.com/akinalp/kurye/middleware"
	"github.com/akinalp/kurye/repository"
	"github.com/akinalp/kurye/services"
)

// initRoutes, middleware chain'i kurar ve tüm endpoint'leri mux'a bağlar.
//
// Route sıralama kuralı: Literal path'ler parametrik path'lerden ÖNCE
// tanımlanmalı. Örnek: "/api/conversations/unread" →
// "/api/conversations/{id}/..." öncesinde, yoksa router "unread"
// kelimesini bir id olarak yorumlar.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"kurye"}`))
	})

	// Auth — public endpoint'ler (token gerekmez)
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)

	// Users
	mux.Handle("GET /api/users/me", auth(h.Auth.Me))
	mux.Handle("GET /api/users/search", auth(h.User.Search))
	mux.Handle("GET /api/users/{id}", auth(h.User.GetProfile))

	// Conversations
	mux.Handle("GET /api/conversations", auth(h.Conversation.List))
	mux.Handle("POST /api/conversations", auth(h.Conversation.Create))
	mux.Handle("GET /api/conversations/unread", auth(h.Conversation.UnreadCounts))
	mux.Handle("GET /api/conversations/{id}/messages", auth(h.Conversation.ListMessages))
	mux.Handle("POST /api/conversations/{id}/messages", auth(h.Conversation.SendMessage))

	// WebSocket — token OPSİYONEL query parameter'dır.
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez;
	// kimlikli bağlanmak isteyen client token'ı query'de taşır:
	//   ws://server/ws?token=JWT_TOKEN
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}

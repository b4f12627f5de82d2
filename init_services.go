// Package main — Service katmanı başlatma.
//
// initServices, tüm service implementasyonlarını oluşturur.
// Her service, ihtiyaç duyduğu repository interface'lerini ve diğer
// dependency'leri constructor injection ile alır.
package main

import (
	"database/sql"
	"time"

	"github.com/akinalp/kurye/config"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg/cache"
	"github.com/akinalp/kurye/pkg/ratelimit"
	"github.com/akinalp/kurye/services"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Auth         services.AuthService
	Conversation services.ConversationService
	User         services.UserService
}

// RateLimiters, tüm rate limiter instance'larını tutan container.
type RateLimiters struct {
	Login   *ratelimit.LoginRateLimiter
	Message *ratelimit.MessageRateLimiter
}

// initServices, tüm service'leri ve rate limiter'ları oluşturur.
//
// db parametresi doğrudan *sql.DB'dir — ConversationService'in
// find-or-create + ilk mesaj akışı WithTx ile atomik çalışır.
func initServices(db *sql.DB, repos *Repositories, cfg *config.Config) (*Services, *RateLimiters) {
	// Profil cache: 30sn TTL, 5dk'da bir fiziksel temizlik.
	// Profil alanları her konuşma listesinde okunur ama nadiren değişir.
	profileCache := cache.New[string, *models.User](30*time.Second, 5*time.Minute)

	svcs := &Services{
		Auth: services.NewAuthService(
			repos.User,
			repos.Session,
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		),
		Conversation: services.NewConversationService(db, repos.Conversation, repos.User),
		User:         services.NewUserService(repos.User, profileCache),
	}

	limiters := &RateLimiters{
		// Login: IP başına 2 dakikada 5 deneme — brute-force koruması
		Login: ratelimit.NewLoginRateLimiter(5, 2*time.Minute),
		// Mesaj: kullanıcı başına 5 saniyede 5 mesaj, aşımda 15sn cooldown
		Message: ratelimit.NewMessageRateLimiter(5, 5*time.Second, 15*time.Second),
	}

	return svcs, limiters
}

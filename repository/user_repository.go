// Package repository, veritabanı erişim katmanını tanımlar.
//
// Repository Pattern:
// Veritabanı işlemleri (CRUD) soyutlanır — service katmanı doğrudan SQL
// yazmaz, repository interface'i üzerinden çalışır.
//
// Neden interface?
// 1. Test: Mock repository yazarak DB olmadan test edebilirsin
// 2. Esneklik: SQLite'tan başka bir store'a geçiş sadece yeni implementasyon
// 3. Dependency Inversion: Service, concrete struct'a değil interface'e bağımlı
package repository

import (
	"context"

	"github.com/akinalp/kurye/models"
)

// UserRepository, kullanıcı veritabanı işlemleri için interface.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Search, username'e göre case-insensitive arama yapar.
	// excludeUserID sonuçlardan çıkarılır (kullanıcı kendini bulamaz).
	Search(ctx context.Context, query string, excludeUserID string, limit int) ([]models.User, error)
}

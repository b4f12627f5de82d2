package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg/cache"
	"github.com/akinalp/kurye/repository"
)

// Arama kuralları: 2 karakterden kısa sorgular hiç DB'ye gitmez,
// sonuç en fazla 10 kullanıcı, arayan kendisi sonuçlarda yer almaz.
const (
	searchMinQueryLen = 2
	searchMaxResults  = 10
)

// UserService, kullanıcı profil ve arama işlemleri.
type UserService interface {
	// GetProfile, public profil döner (password hash temizlenmiş).
	GetProfile(ctx context.Context, id string) (*models.User, error)
	// SearchUsers, username'e göre case-insensitive arama yapar.
	// 2 karakterden kısa sorgular boş sonuç döner (hata değil).
	SearchUsers(ctx context.Context, callerID, query string) ([]models.User, error)
}

// userService, UserService interface'inin implementasyonu.
type userService struct {
	userRepo repository.UserRepository

	// profileCache: profil alanları mesaj listelerinde sık okunur ama
	// nadiren değişir — 30sn TTL, her request'te DB query'yi engeller.
	profileCache *cache.TTLCache[string, *models.User]
}

// NewUserService, constructor.
func NewUserService(userRepo repository.UserRepository, profileCache *cache.TTLCache[string, *models.User]) UserService {
	return &userService{
		userRepo:     userRepo,
		profileCache: profileCache,
	}
}

func (s *userService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.profileCache.Get(id); ok {
		return u, nil
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	s.profileCache.Set(id, user)
	return user, nil
}

func (s *userService) SearchUsers(ctx context.Context, callerID, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < searchMinQueryLen {
		return []models.User{}, nil
	}

	users, err := s.userRepo.Search(ctx, query, callerID, searchMaxResults)
	if err != nil {
		return nil, err
	}

	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

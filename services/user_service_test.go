package services

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/akinalp/kurye/database"
	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
	"github.com/akinalp/kurye/pkg/cache"
	"github.com/akinalp/kurye/repository"
)

func newUserFixture(t *testing.T) (UserService, repository.UserRepository) {
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

	profileCache := cache.New[string, *models.User](time.Minute, time.Minute)
	t.Cleanup(profileCache.Close)

	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	return NewUserService(userRepo, profileCache), userRepo
}

func TestGetProfile(t *testing.T) {
	svc, userRepo := newUserFixture(t)
	ctx := context.Background()

	user := &models.User{Username: "alice", PasswordHash: "secret-hash"}
	if err := userRepo.Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	got, err := svc.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("unexpected username: %s", got.Username)
	}
	if got.PasswordHash != "" {
		t.Error("password hash must be cleared")
	}

	t.Run("served from cache", func(t *testing.T) {
		// Cache dolu — ikinci okuma DB'ye gitmeden aynı sonucu verir
		cached, err := svc.GetProfile(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if cached.ID != user.ID {
			t.Errorf("unexpected cached profile: %+v", cached)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := svc.GetProfile(ctx, "missing"); !errors.Is(err, pkg.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestSearchUsers(t *testing.T) {
	svc, userRepo := newUserFixture(t)
	ctx := context.Background()

	alice := &models.User{Username: "alice", PasswordHash: "x"}
	bob := &models.User{Username: "bobby", PasswordHash: "x"}
	for _, u := range []*models.User{alice, bob} {
		if err := userRepo.Create(ctx, u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	t.Run("short query returns empty without error", func(t *testing.T) {
		users, err := svc.SearchUsers(ctx, alice.ID, "b")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if users == nil || len(users) != 0 {
			t.Errorf("want empty non-nil slice, got %#v", users)
		}
	})

	t.Run("whitespace query counts as short", func(t *testing.T) {
		users, err := svc.SearchUsers(ctx, alice.ID, "  b  ")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("got %d users, want 0", len(users))
		}
	})

	t.Run("match clears password hash", func(t *testing.T) {
		users, err := svc.SearchUsers(ctx, alice.ID, "bob")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 1 || users[0].Username != "bobby" {
			t.Fatalf("unexpected result: %+v", users)
		}
		if users[0].PasswordHash != "" {
			t.Error("password hash must be cleared")
		}
	})

	t.Run("caller excluded", func(t *testing.T) {
		users, err := svc.SearchUsers(ctx, alice.ID, "alice")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("caller should not match self, got %+v", users)
		}
	})
}

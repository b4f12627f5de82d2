package handlers

import (
	"net/http"

	"github.com/akinalp/kurye/models"
	"github.com/akinalp/kurye/pkg"
	"github.com/akinalp/kurye/services"
)

// UserHandler, kullanıcı profil ve arama endpoint'leri.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler, constructor.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Search godoc
// GET /api/users/search?q=...
//
// 2 karakterden kısa sorgular hata değil boş liste döner — frontend her
// tuş vuruşunda istek atar, kısa sorgu normal akışın parçasıdır.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	query := r.URL.Query().Get("q")

	users, err := h.userService.SearchUsers(r.Context(), user.ID, query)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, users)
}

// GetProfile godoc
// GET /api/users/{id}
// Public profil — password hash asla dönmez, kullanıcı yoksa 404.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	profile, err := h.userService.GetProfile(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, profile)
}

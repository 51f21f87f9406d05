package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dritonf/cerdhe/internal/auth"
	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/ws"
	"golang.org/x/crypto/bcrypt"
)

// errNotFound lets cache loaders signal a missing row without caching it.
var errNotFound = errors.New("not found")

type UserHandler struct {
	users  *store.UserStore
	gw     *cache.Gateway
	hub    *ws.Hub
	logger *slog.Logger
}

func NewUserHandler(users *store.UserStore, gw *cache.Gateway, hub *ws.Hub, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, gw: gw, hub: hub, logger: logger}
}

func (h *UserHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("users", action, id))
	}
}

type kidRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	GuardianPhone string `json:"guardian_phone"`
	TeacherID     int64  `json:"teacher_id"`
}

type registerRequest struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      string      `json:"role"`
	Kid       *kidRequest `json:"kid"`
}

// Register creates an account and, when kid data is supplied, the kid row
// in the same transaction. Either both rows exist afterwards or neither.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name, email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleUser {
		writeError(w, http.StatusBadRequest, "role must be admin or user")
		return
	}
	if req.Kid != nil && (req.Kid.FirstName == "" || req.Kid.LastName == "") {
		writeError(w, http.StatusBadRequest, "kid first_name and last_name are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	var kid *store.KidParams
	if req.Kid != nil {
		kid = &store.KidParams{
			FirstName:     req.Kid.FirstName,
			LastName:      req.Kid.LastName,
			GuardianPhone: req.Kid.GuardianPhone,
			TeacherID:     req.Kid.TeacherID,
		}
	}

	user, err := h.users.CreateWithKid(req.FirstName, req.LastName, req.Email, string(hash), req.Role, kid)
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "user with this email already exists")
		return
	case errors.Is(err, store.ErrUnknownTeacher):
		writeError(w, http.StatusBadRequest, "teacher does not exist")
		return
	case err != nil:
		h.logger.Error("user registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	keys := []string{cache.KeyUsers}
	if kid != nil {
		keys = append(keys, cache.KeyKids)
	}
	h.gw.Invalidate(r.Context(), keys...)
	h.broadcast("created", user.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "user created successfully",
		"user":    user,
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := cache.Fetch(r.Context(), h.gw, cache.KeyUsers, func(context.Context) ([]model.User, error) {
		return h.users.List()
	})
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Profile returns the authenticated caller's account, cached per user id.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := cache.Fetch(r.Context(), h.gw, cache.UserKey(userID), func(context.Context) (model.User, error) {
		u, err := h.users.GetByID(userID)
		if err != nil {
			return model.User{}, err
		}
		if u == nil {
			return model.User{}, errNotFound
		}
		return *u, nil
	})
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("fetch profile failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// Update edits an account. Guardian fields denormalized onto the kid row
// are synced by the store in the same transaction; the affected cache keys
// are invalidated here after the commit.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and email are required")
		return
	}
	if req.Role == "" {
		req.Role = existing.Role
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleUser {
		writeError(w, http.StatusBadRequest, "role must be admin or user")
		return
	}

	if req.Email != existing.Email {
		taken, err := h.users.EmailExists(req.Email, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check email")
			return
		}
		if taken {
			writeError(w, http.StatusBadRequest, "email is already in use by another user")
			return
		}
	}

	// Clients may echo the stored hash back; only hash fresh plaintext.
	passwordHash := ""
	if req.Password != "" && !isBcryptHash(req.Password) {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		passwordHash = string(hash)
	}

	user, err := h.users.Update(id, req.FirstName, req.LastName, req.Email, passwordHash, req.Role)
	if err != nil {
		h.logger.Error("user update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	keys := []string{cache.UserKey(id), cache.KeyUsers}
	if req.Email != existing.Email || req.FirstName != existing.FirstName {
		// The kid row's guardian identity changed with the account.
		keys = append(keys, cache.KeyKids, cache.KidKey(existing.Email))
	}
	h.gw.Invalidate(r.Context(), keys...)
	h.broadcast("updated", id)

	writeJSON(w, http.StatusOK, user)
}

// Delete removes an account together with its kid, then invalidates every
// key either row could appear under.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	kid, err := h.users.DeleteWithKid(id)
	if err != nil {
		h.logger.Error("user deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	keys := []string{cache.UserKey(id), cache.KeyUsers}
	if kid != nil {
		keys = append(keys, cache.KeyKids, cache.KidKey(kid.GuardianEmail))
	}
	h.gw.Invalidate(r.Context(), keys...)
	h.broadcast("deleted", id)

	writeJSON(w, http.StatusOK, map[string]string{"message": "user and associated kid deleted successfully"})
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/token"
	"golang.org/x/crypto/bcrypt"
)

type SignInHandler struct {
	users  *store.UserStore
	issuer *token.Issuer
	logger *slog.Logger
}

func NewSignInHandler(users *store.UserStore, issuer *token.Issuer, logger *slog.Logger) *SignInHandler {
	return &SignInHandler{users: users, issuer: issuer, logger: logger}
}

// SignIn verifies the credentials and issues a signed token embedding the
// caller's identity and role. The role is trusted for the token's
// lifetime; a role change takes effect at the next sign-in.
func (h *SignInHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("sign-in lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "no user found with this email")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusBadRequest, "password does not match")
		return
	}

	signed, err := h.issuer.Sign(token.Principal{
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		h.logger.Error("token signing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	h.logger.Info("sign-in successful", "email", user.Email)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": signed})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/ws"
)

type KidHandler struct {
	kids   *store.KidStore
	users  *store.UserStore
	gw     *cache.Gateway
	hub    *ws.Hub
	logger *slog.Logger
}

func NewKidHandler(kids *store.KidStore, users *store.UserStore, gw *cache.Gateway, hub *ws.Hub, logger *slog.Logger) *KidHandler {
	return &KidHandler{kids: kids, users: users, gw: gw, hub: hub, logger: logger}
}

func (h *KidHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("kids", action, id))
	}
}

func (h *KidHandler) List(w http.ResponseWriter, r *http.Request) {
	kids, err := cache.Fetch(r.Context(), h.gw, cache.KeyKids, func(context.Context) ([]model.Kid, error) {
		return h.kids.List()
	})
	if err != nil {
		h.logger.Error("list kids failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch kids")
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

// MyKid returns the kid owned by the account with the given guardian
// email, cached per email.
func (h *KidHandler) MyKid(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.users.GetByEmail(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	kid, err := cache.Fetch(r.Context(), h.gw, cache.KidKey(email), func(context.Context) (model.Kid, error) {
		k, err := h.kids.GetByGuardianEmail(email)
		if err != nil {
			return model.Kid{}, err
		}
		if k == nil {
			return model.Kid{}, errNotFound
		}
		return *k, nil
	})
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "no kid found for this user")
		return
	}
	if err != nil {
		h.logger.Error("fetch kid failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch kid")
		return
	}
	writeJSON(w, http.StatusOK, kid)
}

type kidCreateRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	GuardianFirstName string `json:"guardian_first_name"`
	GuardianEmail     string `json:"guardian_email"`
	GuardianPhone     string `json:"guardian_phone"`
	TeacherID         int64  `json:"teacher_id"`
	UserID            int64  `json:"user_id"`
}

func (h *KidHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req kidCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" || req.GuardianEmail == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and guardian_email are required")
		return
	}

	kid, err := h.kids.Create(req.FirstName, req.LastName, req.GuardianFirstName, req.GuardianEmail,
		req.GuardianPhone, req.TeacherID, req.UserID)
	if errors.Is(err, store.ErrUnknownTeacher) {
		writeError(w, http.StatusBadRequest, "teacher does not exist")
		return
	}
	if err != nil {
		h.logger.Error("create kid failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create kid")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyKids)
	h.broadcast("created", kid.ID)
	writeJSON(w, http.StatusCreated, kid)
}

type kidUpdateRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	GuardianFirstName string `json:"guardian_first_name"`
	GuardianEmail     string `json:"guardian_email"`
	GuardianPhone     string `json:"guardian_phone"`
}

func (h *KidHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.kids.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get kid")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "kid does not exist")
		return
	}

	var req kidUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.GuardianEmail == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and guardian_email are required")
		return
	}

	kid, err := h.kids.Update(id, req.FirstName, req.LastName, req.GuardianFirstName, req.GuardianEmail, req.GuardianPhone)
	if err != nil {
		h.logger.Error("update kid failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update kid")
		return
	}

	// The entry under the old guardian email is stale either way.
	h.gw.Invalidate(r.Context(), cache.KeyKids, cache.KidKey(existing.GuardianEmail))
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, kid)
}

func (h *KidHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.kids.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get kid")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "kid does not exist")
		return
	}

	if err := h.kids.Delete(id); err != nil {
		h.logger.Error("delete kid failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete kid")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyKids, cache.KidKey(existing.GuardianEmail))
	h.broadcast("deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "kid deleted successfully"})
}

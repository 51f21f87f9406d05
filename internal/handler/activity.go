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

type ActivityHandler struct {
	activities *store.ActivityStore
	gw         *cache.Gateway
	hub        *ws.Hub
	logger     *slog.Logger
}

func NewActivityHandler(activities *store.ActivityStore, gw *cache.Gateway, hub *ws.Hub, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, gw: gw, hub: hub, logger: logger}
}

func (h *ActivityHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("activities", action, id))
	}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	activities, err := cache.Fetch(r.Context(), h.gw, cache.KeyActivities, func(context.Context) ([]model.Activity, error) {
		return h.activities.List()
	})
	if err != nil {
		h.logger.Error("list activities failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch activities")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

type activityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TeacherID   int64  `json:"teacher_id"`
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "name and description are required")
		return
	}

	activity, err := h.activities.Create(req.Name, req.Description, req.TeacherID)
	if errors.Is(err, store.ErrUnknownTeacher) {
		writeError(w, http.StatusBadRequest, "teacher does not exist")
		return
	}
	if err != nil {
		h.logger.Error("create activity failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create activity")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyActivities)
	h.broadcast("created", activity.ID)
	writeJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.activities.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get activity")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "activity does not exist")
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "name and description are required")
		return
	}

	activity, err := h.activities.Update(id, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update activity failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update activity")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyActivities)
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.activities.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get activity")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "activity does not exist")
		return
	}

	if err := h.activities.Delete(id); err != nil {
		h.logger.Error("delete activity failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete activity")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyActivities)
	h.broadcast("deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "activity deleted successfully"})
}

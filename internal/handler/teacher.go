package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/ws"
)

type TeacherHandler struct {
	teachers *store.TeacherStore
	kids     *store.KidStore
	gw       *cache.Gateway
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewTeacherHandler(teachers *store.TeacherStore, kids *store.KidStore, gw *cache.Gateway, hub *ws.Hub, logger *slog.Logger) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, kids: kids, gw: gw, hub: hub, logger: logger}
}

func (h *TeacherHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("teachers", action, id))
	}
}

type teacherRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	ImageURL  string `json:"image_url"`
}

func (req *teacherRequest) validate() string {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" || req.Phone == "" {
		return "first_name, last_name and phone are required"
	}
	return ""
}

func (h *TeacherHandler) List(w http.ResponseWriter, r *http.Request) {
	teachers, err := cache.Fetch(r.Context(), h.gw, cache.KeyTeachers, func(context.Context) ([]model.Teacher, error) {
		return h.teachers.List()
	})
	if err != nil {
		h.logger.Error("list teachers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch teachers")
		return
	}
	if teachers == nil {
		teachers = []model.Teacher{}
	}
	writeJSON(w, http.StatusOK, teachers)
}

func (h *TeacherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req teacherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	teacher, err := h.teachers.Create(req.FirstName, req.LastName, req.Phone, req.ImageURL)
	if err != nil {
		h.logger.Error("create teacher failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create teacher")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyTeachers)
	h.broadcast("created", teacher.ID)
	writeJSON(w, http.StatusCreated, teacher)
}

func (h *TeacherHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.teachers.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get teacher")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "teacher not found")
		return
	}

	var req teacherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.ImageURL == "" {
		req.ImageURL = existing.ImageURL
	}

	teacher, err := h.teachers.Update(id, req.FirstName, req.LastName, req.Phone, req.ImageURL)
	if err != nil {
		h.logger.Error("update teacher failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update teacher")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyTeachers)
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, teacher)
}

// Delete removes a teacher. The schema cascades the delete to the
// teacher's kids and activities, so their cache keys are invalidated too,
// including each affected kid's guardian-email key.
func (h *TeacherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.teachers.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get teacher")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "teacher not found")
		return
	}

	affected, err := h.kids.ListByTeacher(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list kids for teacher")
		return
	}

	if err := h.teachers.Delete(id); err != nil {
		h.logger.Error("delete teacher failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete teacher")
		return
	}

	keys := []string{cache.KeyTeachers, cache.KeyKids, cache.KeyActivities}
	for _, kid := range affected {
		keys = append(keys, cache.KidKey(kid.GuardianEmail))
	}
	h.gw.Invalidate(r.Context(), keys...)
	h.broadcast("deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "teacher deleted successfully"})
}

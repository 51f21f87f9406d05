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

type MealHandler struct {
	meals  *store.MealStore
	gw     *cache.Gateway
	hub    *ws.Hub
	logger *slog.Logger
}

func NewMealHandler(meals *store.MealStore, gw *cache.Gateway, hub *ws.Hub, logger *slog.Logger) *MealHandler {
	return &MealHandler{meals: meals, gw: gw, hub: hub, logger: logger}
}

func (h *MealHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("meals", action, id))
	}
}

func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	meals, err := cache.Fetch(r.Context(), h.gw, cache.KeyMeals, func(context.Context) ([]model.Meal, error) {
		return h.meals.List()
	})
	if err != nil {
		h.logger.Error("list meals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch meals")
		return
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	writeJSON(w, http.StatusOK, meals)
}

type mealRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weekday     string `json:"weekday"`
	TimeOfDay   string `json:"time_of_day"`
}

func (r *mealRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || r.Description == "" || r.Weekday == "" || r.TimeOfDay == "" {
		return "name, description, weekday and time_of_day are required"
	}
	return ""
}

func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	meal, err := h.meals.Create(req.Name, req.Description, req.Weekday, req.TimeOfDay)
	if err != nil {
		h.logger.Error("create meal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create meal")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyMeals)
	h.broadcast("created", meal.ID)
	writeJSON(w, http.StatusCreated, meal)
}

func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.meals.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get meal")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "meal does not exist")
		return
	}

	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	meal, err := h.meals.Update(id, req.Name, req.Description, req.Weekday, req.TimeOfDay)
	if err != nil {
		h.logger.Error("update meal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update meal")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyMeals)
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, meal)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.meals.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get meal")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "meal does not exist")
		return
	}

	if err := h.meals.Delete(id); err != nil {
		h.logger.Error("delete meal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete meal")
		return
	}

	h.gw.Invalidate(r.Context(), cache.KeyMeals)
	h.broadcast("deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "meal deleted successfully"})
}

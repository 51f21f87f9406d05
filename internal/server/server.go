package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/handler"
	"github.com/dritonf/cerdhe/internal/middleware"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/token"
	"github.com/dritonf/cerdhe/internal/ws"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	gateway     *cache.Gateway
	issuer      *token.Issuer
	signInH     *handler.SignInHandler
	userH       *handler.UserHandler
	teacherH    *handler.TeacherHandler
	kidH        *handler.KidHandler
	activityH   *handler.ActivityHandler
	mealH       *handler.MealHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, gateway *cache.Gateway, issuer *token.Issuer, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	teacherStore := store.NewTeacherStore(db)
	kidStore := store.NewKidStore(db)
	activityStore := store.NewActivityStore(db)
	mealStore := store.NewMealStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		gateway:     gateway,
		issuer:      issuer,
		signInH:     handler.NewSignInHandler(userStore, issuer, logger.With("component", "signin")),
		userH:       handler.NewUserHandler(userStore, gateway, hub, logger.With("component", "user")),
		teacherH:    handler.NewTeacherHandler(teacherStore, kidStore, gateway, hub, logger.With("component", "teacher")),
		kidH:        handler.NewKidHandler(kidStore, userStore, gateway, hub, logger.With("component", "kid")),
		activityH:   handler.NewActivityHandler(activityStore, gateway, hub, logger.With("component", "activity")),
		mealH:       handler.NewMealHandler(mealStore, gateway, hub, logger.With("component", "meal")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no token required)
	mux.HandleFunc("POST /v1/signin", s.rateLimitedHandler(s.signInH.SignIn))
	mux.HandleFunc("POST /v1/users", s.rateLimitedHandler(s.userH.Register))
	mux.HandleFunc("GET /v1/teachers", s.teacherH.List)
	mux.HandleFunc("GET /v1/activities", s.activityH.List)
	mux.HandleFunc("GET /v1/kids/my-kid", s.kidH.MyKid)
	mux.HandleFunc("GET /health", s.healthHandler)

	// Token-protected routes, role sets per route
	auth := middleware.RequireAuth(s.issuer)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleUser)

	protect := func(roleMW func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
		return auth(roleMW(h))
	}

	// Users
	mux.Handle("GET /v1/users", protect(adminOnly, s.userH.List))
	mux.Handle("GET /v1/users/profile", protect(anyRole, s.userH.Profile))
	mux.Handle("PUT /v1/users/{id}", protect(anyRole, s.userH.Update))
	mux.Handle("DELETE /v1/users/{id}", protect(anyRole, s.userH.Delete))

	// Teachers
	mux.Handle("POST /v1/teachers", protect(adminOnly, s.teacherH.Create))
	mux.Handle("PUT /v1/teachers/{id}", protect(adminOnly, s.teacherH.Update))
	mux.Handle("DELETE /v1/teachers/{id}", protect(adminOnly, s.teacherH.Delete))

	// Kids
	mux.Handle("GET /v1/kids", protect(anyRole, s.kidH.List))
	mux.Handle("POST /v1/kids", protect(adminOnly, s.kidH.Create))
	mux.Handle("PUT /v1/kids/{id}", protect(adminOnly, s.kidH.Update))
	mux.Handle("DELETE /v1/kids/{id}", protect(adminOnly, s.kidH.Delete))

	// Activities
	mux.Handle("POST /v1/activities", protect(adminOnly, s.activityH.Create))
	mux.Handle("PUT /v1/activities/{id}", protect(adminOnly, s.activityH.Update))
	mux.Handle("DELETE /v1/activities/{id}", protect(adminOnly, s.activityH.Delete))

	// Meals
	mux.Handle("GET /v1/meals", protect(anyRole, s.mealH.List))
	mux.Handle("POST /v1/meals", protect(adminOnly, s.mealH.Create))
	mux.Handle("PUT /v1/meals/{id}", protect(adminOnly, s.mealH.Update))
	mux.Handle("DELETE /v1/meals/{id}", protect(adminOnly, s.mealH.Delete))

	// WebSocket, any authenticated role
	mux.Handle("GET /v1/ws", auth(ws.Handler(s.hub, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/config"
	"github.com/dritonf/cerdhe/internal/database"
	"github.com/dritonf/cerdhe/internal/logging"
	"github.com/dritonf/cerdhe/internal/server"
	"github.com/dritonf/cerdhe/internal/token"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	redis := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	defer redis.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, serving without cache acceleration", "addr", cfg.RedisAddr, "error", err)
	}
	cancelPing()

	gateway := cache.NewGateway(redis, cfg.CacheTTL, logger.With("component", "cache"))
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.TokenDuration)

	srv := server.New(db, gateway, issuer, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Drop expired rate-limit windows so the map doesn't grow unbounded.
	cleanupTicker := time.NewTicker(10 * time.Minute)
	defer cleanupTicker.Stop()
	go func() {
		for range cleanupTicker.C {
			srv.RateLimiter().Cleanup()
		}
	}()

	go func() {
		fmt.Printf("Cerdhe running at http://localhost:%s\n", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	gateway.Flush()
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"psblearn/config"
	"psblearn/handlers"
	"psblearn/middleware"
	"psblearn/routes"
	"psblearn/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis unavailable, catalog cache and submit lock degrade to no-ops: %v", err)
	}

	// WebSocket hub for live course feeds
	hub := services.NewHub()
	go hub.Run()

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.JWTTTL)
	directory := services.NewDirectoryService(db)
	catalog := services.NewTestCatalog(db, directory, redisClient, cfg.CatalogTTL)
	engine := services.NewAttemptEngine(db, directory, hub, redisClient, cfg.SubmitLockTTL)
	history := services.NewAttemptHistory(db)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	routes.SetupRoutes(router, routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		Course:  handlers.NewCourseHandler(directory),
		Test:    handlers.NewTestHandler(catalog, directory),
		Attempt: handlers.NewAttemptHandler(engine, history, catalog, directory),
	}, hub, directory, authService)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = redisClient.Close()
}

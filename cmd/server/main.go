package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/config"
	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/Quai1921/SmartClass-sub000/internal/db"
	"github.com/Quai1921/SmartClass-sub000/internal/logger"
	"github.com/Quai1921/SmartClass-sub000/internal/middleware"
	"github.com/Quai1921/SmartClass-sub000/internal/module"
	"github.com/Quai1921/SmartClass-sub000/internal/worker"
	"github.com/Quai1921/SmartClass-sub000/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	boot, err := logger.New().Make()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.LoadConfig(boot.Logger)

	appLog, err := logger.New().FromPath(cfg.LogFile).WithLevel(cfg.LogLevel).Make()
	if err != nil {
		boot.Logger.Fatal().Err(err).Str("path", cfg.LogFile).Msg("unable to open log file")
	}
	defer appLog.Close()
	log := appLog.Logger

	// Connect to database
	if err := db.ConnectDb(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.CloseDb(log)

	// Migrate database schema
	if err := db.Migrate(log); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Seed database with initial data (for development)
	if cfg.Environment == "development" {
		if err := db.SeedData(context.Background(), log); err != nil {
			log.Error().Err(err).Msg("seeding failed")
		}
	}

	// Initialize Redis
	redisClient := redis.InitRedis(context.Background(), cfg.RedisAddress, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := redis.NewCache(redisClient, log)

	// background revision snapshots
	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, 100, 10*time.Second, log)

	// Initialize repository, service and handler
	moduleRepo := module.NewRepository(db.AppDb)
	moduleService := module.NewService(
		moduleRepo,
		cache,
		pool,
		content.NewMigrator(log),
		cfg.ContentCacheTTL,
		log,
	)
	moduleHandler := module.NewHandler(moduleService)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler(log))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	authMiddleware := &middleware.Auth{
		JWTSecret:      cfg.JWTSecret,
		InternalSecret: cfg.InternalSecret,
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Module editing routes
	modules := router.Group("/modules/:moduleId", authMiddleware.AuthMiddleWare())
	modules.POST("/session", moduleHandler.OpenSession)
	modules.GET("/session", moduleHandler.ShowSession)
	modules.DELETE("/session", moduleHandler.CloseSession)
	modules.DELETE("/session/error", moduleHandler.ClearError)
	modules.POST("/pages", moduleHandler.CreatePage)
	modules.PUT("/pages/order", moduleHandler.ReorderPages)
	modules.PATCH("/pages/:pageId", moduleHandler.UpdatePage)
	modules.DELETE("/pages/:pageId", moduleHandler.DeletePage)
	modules.POST("/navigation", moduleHandler.Navigate)
	modules.POST("/pages/:pageId/elements", moduleHandler.AddElement)
	modules.PATCH("/pages/:pageId/elements/:elementId", moduleHandler.UpdateElement)
	modules.DELETE("/pages/:pageId/elements/:elementId", moduleHandler.RemoveElement)
	modules.POST("/elements/:elementId/move", moduleHandler.MoveElement)
	modules.POST("/save", moduleHandler.Save)
	modules.GET("/revisions", moduleHandler.ShowRevisions)

	// internal use routes
	router.POST("/internal/modules/:moduleId/migrate", authMiddleware.InternalAuthMiddleware(), moduleHandler.Migrate)

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	// let queued revision snapshots finish
	pool.Shutdown()
	log.Info().Msg("Server shutdown complete")
}

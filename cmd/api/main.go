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

	"gamekey-market-api/internal/config"
	"gamekey-market-api/internal/events"
	"gamekey-market-api/internal/frontend"
	"gamekey-market-api/internal/handler"
	"gamekey-market-api/internal/middleware"
	"gamekey-market-api/internal/notify"
	"gamekey-market-api/internal/payout"
	"gamekey-market-api/internal/repository"
	"gamekey-market-api/internal/router"
	"gamekey-market-api/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting GameKey Market API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize market repository based on config
	var marketRepo repository.MarketRepository
	var err error
	switch cfg.MarketDB.Type {
	case "postgres", "postgresql":
		marketRepo, err = repository.NewPostgresMarketRepository(cfg.MarketDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		log.Println("PostgreSQL market repository initialized")
	case "mysql":
		marketRepo, err = repository.NewMySQLMarketRepository(cfg.MarketDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		log.Println("MySQL market repository initialized")
	case "leveldb":
		marketRepo, err = repository.NewLevelDBMarketRepository(cfg.MarketDB.LevelDBPath)
		if err != nil {
			log.Fatalf("Failed to initialize LevelDB: %v", err)
		}
		log.Println("LevelDB market repository initialized")
	case "memory":
		marketRepo = repository.NewMemoryMarketRepository()
		log.Println("In-memory market repository initialized (state will not survive restarts)")
	default: // sqlite
		marketRepo, err = repository.NewSQLiteMarketRepository(cfg.MarketDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		log.Println("SQLite market repository initialized")
	}
	defer marketRepo.Close()

	// Initialize Redis client (session tokens + event publishing)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		redisClient = nil
	} else {
		log.Println("Redis client initialized")
	}
	cancel()

	// Event emitter and observers
	emitter := events.NewEmitter()
	if redisClient != nil && cfg.Notify.RedisChannel != "" {
		notify.NewRedisPublisher(redisClient, cfg.Notify.RedisChannel).Attach(emitter)
		log.Printf("Redis event publisher attached (channel=%s)", cfg.Notify.RedisChannel)
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			log.Printf("Warning: Telegram notifier initialization failed: %v", err)
		} else {
			notifier.Attach(emitter)
			log.Println("Telegram notifier attached")
		}
	}

	// Payout provider
	var payer payout.Provider
	if cfg.Payout.WebhookURL != "" {
		payer = payout.NewWebhook(cfg.Payout.WebhookURL, cfg.Payout.Timeout)
		log.Println("Webhook payout provider initialized")
	} else {
		payer = payout.Noop{}
		log.Println("Warning: no payout gateway configured, using noop provider")
	}

	// Initialize market engine
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	marketService, err := service.NewMarketService(ctx, marketRepo, emitter, payer)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize market service: %v", err)
	}

	var tokenService *service.TokenService
	if redisClient != nil {
		tokenService = service.NewTokenService(redisClient)
	}

	// Initialize handlers
	healthHandler := handler.New()
	marketHandler := handler.NewMarketHandler(marketService)
	adminHandler := handler.NewAdminHandler(marketRepo, cfg.MarketDB.Type)

	var authHandler *handler.AuthHandler
	if tokenService != nil {
		authHandler = handler.NewAuthHandler(tokenService)
	}

	// Create auth middleware with injected dependencies
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		TokenService:        tokenService,
		AllowHeaderAccounts: cfg.App.IsDevelopment(),
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		MarketHandler:  marketHandler,
		AdminHandler:   adminHandler,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Publish address + interface description for the frontend build
	if cfg.Frontend.Update {
		addr := fmt.Sprintf("http://%s", cfg.Server.Address())
		if err := frontend.Export(cfg.Frontend, cfg.App.Environment, addr); err != nil {
			log.Printf("Warning: frontend export failed: %v", err)
		} else {
			log.Println("Frontend artifacts updated")
		}
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

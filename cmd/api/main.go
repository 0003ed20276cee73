package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school-inventory-api/internal/cache"
	"school-inventory-api/internal/config"
	"school-inventory-api/internal/handler"
	"school-inventory-api/internal/middleware"
	"school-inventory-api/internal/repository"
	"school-inventory-api/internal/router"
	"school-inventory-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting School Inventory API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize inventory store based on config
	var store repository.Store
	switch cfg.Inventory.Type {
	case "memory":
		store = repository.NewMemoryStore()
		log.Println("In-memory store initialized")
	case "postgres", "postgresql":
		pgStore, err := repository.NewPostgresStore(cfg.Inventory.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		store = pgStore
		log.Println("PostgreSQL store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Inventory.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize MySQL connection for the staff directory (optional)
	var userRepo repository.UserRepository
	if cfg.StaffDB.Enabled {
		mysqlDB, err := sql.Open("mysql", cfg.StaffDB.DSN())
		if err != nil {
			log.Printf("Warning: MySQL connection failed: %v", err)
		} else {
			mysqlDB.SetMaxOpenConns(10)
			mysqlDB.SetMaxIdleConns(5)
			mysqlDB.SetConnMaxLifetime(5 * time.Minute)

			if err := mysqlDB.Ping(); err != nil {
				log.Printf("Warning: MySQL ping failed: %v", err)
				mysqlDB.Close()
			} else {
				defer mysqlDB.Close()
				userRepo = repository.NewMySQLUserRepository(mysqlDB)
				log.Println("Staff directory initialized")
			}
		}
	}

	// Initialize Redis client
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

	// Initialize cache
	var appCache cache.Cache
	if cfg.Cache.Type == "redis" && redisClient != nil {
		appCache = cache.NewRedisCache(redisClient, "")
		log.Println("Redis cache initialized")
	} else {
		appCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}
	defer appCache.Close()

	// Initialize services
	inventoryService := service.NewInventoryService(store)
	requestService := service.NewRequestService(store)

	var tokenService *service.TokenService
	if redisClient != nil {
		tokenService = service.NewTokenService(redisClient)
	}

	// Activity-log retention
	var retention *service.RetentionScheduler
	if cfg.Retention.Enabled {
		retention = service.NewRetentionScheduler(store, service.RetentionConfig{
			MaxAge:        cfg.Retention.MaxAge,
			SweepInterval: cfg.Retention.SweepInterval,
		})
		retention.Start()
		defer retention.Stop()
	}

	// Initialize handlers
	healthHandler := handler.New()
	itemHandler := handler.NewItemHandler(inventoryService)
	requestHandler := handler.NewRequestHandler(requestService)
	reportHandler := handler.NewReportHandler(store, appCache)
	adminHandler := handler.NewAdminHandler(store, retention, cfg.Inventory.Type)

	var authHandler *handler.AuthHandler
	if tokenService != nil && userRepo != nil {
		authHandler = handler.NewAuthHandler(tokenService, userRepo)
	}

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		TokenService: tokenService,
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		ItemHandler:    itemHandler,
		RequestHandler: requestHandler,
		ReportHandler:  reportHandler,
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
	fmt.Println("Goodbye!")
}

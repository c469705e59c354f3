package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/sharefund/backend/docs"
	"github.com/sharefund/backend/internal/config"
	"github.com/sharefund/backend/internal/database"
	"github.com/sharefund/backend/internal/handlers"
	"github.com/sharefund/backend/internal/ledger"
	mW "github.com/sharefund/backend/internal/middleware"
	"github.com/sharefund/backend/internal/services"
	"github.com/sharefund/backend/internal/store"
	"github.com/sharefund/backend/internal/uid"
)

// @title ShareFund Ledger API
// @version 1.0
// @description API for the crowdfunding profit-share ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("admin.username", "ADMIN_USERNAME")
	viper.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "ShareFund Ledger API"
	docs.SwaggerInfo.Description = "API for the crowdfunding profit-share ledger"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ledgerConfig := config.LoadLedgerConfig()
	ledgerCfg := ledger.Config{
		UnitAmount:         ledgerConfig.UnitAmount,
		ResaleRatePerShare: ledgerConfig.ResaleRatePerShare,
	}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	accountStore := store.NewAccountStore(db, redisClient, ledgerCfg)
	allocator := uid.NewAllocator(accountStore, redisClient, uid.Options{
		Alphabet:      ledgerConfig.UIDAlphabet,
		Length:        ledgerConfig.UIDLength,
		MaxAttempts:   ledgerConfig.UIDMaxAttempts,
		TimestampTail: ledgerConfig.UIDTimestampTail,
	})
	ledgerService := services.NewLedgerService(accountStore, allocator, ledgerCfg)
	certService := services.NewCertificateService(ledgerConfig, ledgerCfg)
	authService := services.NewAuthService(redisClient)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, certService)
	adminHandler := handlers.NewAdminHandler(accountStore)

	// Initialize auth middleware with Redis for token revocation
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for generated certificates
	r.Handle("/static/certificates/*", http.StripPrefix("/static/certificates/",
		mW.StaticFileServer(ledgerConfig.CertificateDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (holder identifier is the credential)
		r.Post("/register", ledgerHandler.Register)
		r.Post("/reinvest", ledgerHandler.Reinvest)
		r.Post("/transfer", ledgerHandler.Transfer)
		r.Get("/verify/{uid}", ledgerHandler.Verify)
		r.Post("/certificates/{uid}/download", ledgerHandler.DownloadCertificate)

		r.Post("/admin/login", authService.Login)
		r.Post("/admin/logout", authService.Logout)

		// Admin endpoints (JWT required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/admin/accounts", adminHandler.ListAccounts)
			r.Put("/admin/accounts/{uid}/field", adminHandler.UpdateField)
			r.Post("/admin/accounts/{uid}/notes", adminHandler.AppendNote)
			r.Get("/admin/accounts/{uid}/notes", adminHandler.ListNotes)
			r.Delete("/admin/accounts/{uid}", adminHandler.DeleteAccount)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// ==============================================================================
// DASHBOARD SERVICE - cmd/dashboard/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"bgref/internal/affiliate"
	"bgref/internal/auth"
	"bgref/internal/fallback"
	"bgref/internal/handler"
	"bgref/internal/middleware"
	"bgref/internal/notification"
	"bgref/internal/repository/postgres"
	"bgref/internal/upstream"
	"bgref/pkg/cache"
	"bgref/pkg/config"
	"bgref/pkg/logger"
	"bgref/pkg/validator"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logger.NewWithMode("bgref-dashboard", cfg.LogMode)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(db)

	var source affiliate.Source
	switch cfg.Affiliate.SourceMode {
	case config.SourceUpstream:
		source = upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, middleware.TokenFromContext)
	default:
		source = postgres.NewAffiliateRepository(db)
	}

	// Initialize services
	store := cache.NewFromClient(redisClient, "")
	blacklist := middleware.NewRedisTokenBlacklist(redisClient)
	hub := notification.NewHub(log)

	var google auth.GoogleProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	} else {
		log.Warn("Google login disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set", nil)
	}

	var botKey *auth.BotKey
	if cfg.Telegram.BotKey != "" {
		botKey = auth.NewBotKey(cfg.Telegram.BotKey)
	} else {
		log.Warn("Telegram login disabled: TELEGRAM_BOT_KEY not set", nil)
	}

	authService := auth.NewService(walletRepo, store, blacklist, google, log, auth.Options{
		JWTSecret: cfg.JWT.Secret,
		JWTExpiry: cfg.JWT.Expiration,
		CodeTTL:   cfg.Telegram.CodeTTL,
	})
	affiliateService := affiliate.NewService(source, fallback.Source{}, store, hub, log, affiliate.Options{
		CommissionNeverIncrease: cfg.Affiliate.CommissionNeverIncrease,
		EnableFallbackMode:      cfg.Fallback.EnableFallbackMode,
		SnapshotTTL:             cfg.Fallback.FallbackCacheTTL,
	})

	// Initialize handlers
	val := validator.New()
	authHandler := handler.NewAuthHandler(authService, botKey, val, log)
	affiliateHandler := handler.NewAffiliateHandler(affiliateService, val, log)
	eventsHandler := handler.NewEventsHandler(hub, cfg.CORS.AllowedOrigins, log)
	systemHandler := handler.NewSystemHandler(db, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, cfg.Affiliate.SourceMode, log)

	// Setup router
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, blacklist, log)
	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	idempotency := middleware.NewIdempotencyMiddleware(redisClient, cfg.RateLimit.IdempotencyTTL, log)

	r := mux.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20))

	r.HandleFunc("/health", systemHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", systemHandler.Ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/login-email", authHandler.LoginEmail).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/telegram/login", authHandler.TelegramLogin).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/telegram/code", authHandler.TelegramCode).Methods(http.MethodPost, http.MethodOptions)

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware.Authenticate)
	protected.Use(rateLimiter.Limit)
	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)

	bgRef := protected.PathPrefix("/bg-ref").Subrouter()
	bgRef.Use(middleware.RequireAffiliate)
	bgRef.HandleFunc("/my-status", affiliateHandler.MyStatus).Methods(http.MethodGet, http.MethodOptions)
	bgRef.HandleFunc("/stats", affiliateHandler.Stats).Methods(http.MethodGet, http.MethodOptions)
	bgRef.HandleFunc("/tree", affiliateHandler.Tree).Methods(http.MethodGet, http.MethodOptions)
	bgRef.HandleFunc("/overview", affiliateHandler.Overview).Methods(http.MethodGet, http.MethodOptions)
	bgRef.HandleFunc("/commission-history", affiliateHandler.CommissionHistory).Methods(http.MethodGet, http.MethodOptions)
	bgRef.HandleFunc("/downline-stats", affiliateHandler.DownlineStats).Methods(http.MethodGet, http.MethodOptions)
	bgRef.Handle("/nodes/commission", idempotency.Apply(http.HandlerFunc(affiliateHandler.UpdateCommission))).Methods(http.MethodPut, http.MethodOptions)

	r.Handle("/ws", authMiddleware.Authenticate(http.HandlerFunc(eventsHandler.Serve))).Methods(http.MethodGet)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Dashboard service started", map[string]interface{}{
			"address":     srv.Addr,
			"source_mode": cfg.Affiliate.SourceMode,
			"fallback":    cfg.Fallback.EnableFallbackMode,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down dashboard service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Dashboard service forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Dashboard service stopped", nil)
}

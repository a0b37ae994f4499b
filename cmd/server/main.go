package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"unifield-backend/internal/auth"
	"unifield-backend/internal/backup"
	"unifield-backend/internal/cache"
	"unifield-backend/internal/config"
	"unifield-backend/internal/database"
	"unifield-backend/internal/db"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/handlers"
	h "unifield-backend/internal/http"
	"unifield-backend/internal/health"
	"unifield-backend/internal/middleware"
	"unifield-backend/internal/realtime"
	"unifield-backend/internal/reports"
	"unifield-backend/internal/repositories"
	"unifield-backend/internal/services"
	"unifield-backend/internal/timeutil"
	"unifield-backend/migrations"
)

// jwtSecretFile is read when neither config nor JWT_SECRET carry a secret.
const jwtSecretFile = "configs/jwt_secret.txt"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if cfg.JWT.Secret == "" {
		if data, err := os.ReadFile(jwtSecretFile); err == nil {
			cfg.JWT.Secret = strings.TrimSpace(string(data))
		}
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT secret not configured: set JWT_SECRET or jwt.secret")
	}
	timeutil.SetLocation(cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	log.Println("Running database migrations...")
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(migrateCtx); err != nil {
		cancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	cancel()

	// Redis is optional; without it every select goes to Postgres
	if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (serving uncached)", err)
	}
	defer cache.Close()

	// Change feed
	hub := realtime.NewHub(pool)
	hub.OnEvent(func(ev gateway.ChangeEvent) {
		cache.InvalidateTable(context.Background(), ev.Table)
	})
	go hub.Run(ctx)

	// Gateway
	var gw gateway.Gateway = gateway.NewPostgres(pool, hub, middleware.CurrentUser, cfg.Server.Tables...)
	if cache.GetClient() != nil {
		gw = cache.NewTableCache(gw, cfg.CacheTTL())
	}

	// Auth
	jwtManager := auth.NewJWTManager(cfg)
	userRepo := repositories.NewUserRepository(pool)
	userService := services.NewUserService(userRepo, jwtManager)
	if err := userService.EnsureAdmin(ctx, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		log.Printf("[Auth] Admin bootstrap failed: %v", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)

	// Backups
	var backupService *backup.Service
	if cfg.BackupEnabled() {
		client, err := backup.NewS3Client(ctx, cfg)
		if err != nil {
			log.Printf("[Backup] Disabled: %v", err)
		} else {
			backupService = backup.NewService(gw, cfg.Server.Tables, client, cfg.Backup.Bucket, cfg.Backup.Prefix)
			log.Printf("[Backup] Snapshots go to %s/%s", cfg.Backup.Bucket, cfg.Backup.Prefix)
		}
	}

	apiLogging := middleware.NewAPILoggingMiddleware()
	defer apiLogging.Close()

	healthChecker := health.NewHealthChecker(pool, cache.IsHealthy, hub.Subscribers)
	router := h.NewRouter(
		handlers.NewAuthHandler(userService, repositories.NewLoginLogRepository(pool)),
		handlers.NewTableHandler(gw, repositories.NewActionLogRepository(pool)),
		handlers.NewRealtimeHandler(gw),
		handlers.NewRetailerPortalHandler(gw),
		handlers.NewInvoiceHandler(reports.NewInvoiceService(gw, cfg.Business.Name, cfg.Business.Currency)),
		handlers.NewBackupHandler(backupService),
		handlers.NewHealthHandler(healthChecker),
		authMiddleware,
		apiLogging,
	)

	corsMiddleware := middleware.NewCORS(cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           middleware.PanicRecovery(corsMiddleware(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s (%d tables)", srv.Addr, len(cfg.Server.Tables))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

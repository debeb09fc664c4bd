package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/monocle-dev/taskhub/db"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/auth"
	"github.com/monocle-dev/taskhub/internal/config"
	"github.com/monocle-dev/taskhub/internal/events"
	"github.com/monocle-dev/taskhub/internal/handlers"
	"github.com/monocle-dev/taskhub/internal/middleware"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/router"
	"github.com/monocle-dev/taskhub/internal/scheduler"
	"github.com/monocle-dev/taskhub/internal/services"
	"github.com/monocle-dev/taskhub/internal/store"
)

const uploadPrefix = "/uploads"

func main() {
	port := pflag.String("port", "", "HTTP port (overrides PORT)")
	envFile := pflag.String("env-file", ".env", "dotenv file to load")
	migrateOnly := pflag.Bool("migrate", false, "run schema migration and exit")
	skipMigrate := pflag.Bool("skip-migrate", false, "do not migrate the schema on startup")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.WithField("file", *envFile).Warn("env file not loaded, using process environment")
	}

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *port != "" {
		cfg.Port = *port
	}

	configureLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	conn, err := db.ConnectDatabase(cfg.DatabaseURL)

	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if !*skipMigrate || *migrateOnly {
		if err := db.MigrateDatabase(conn); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Info("Database migrated")
	}

	if *migrateOnly {
		return
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	if err != nil {
		log.Fatal(err)
	}

	redisClient := connectRedis(cfg.RedisURL)
	roleCache := store.NewRoleCache(redisClient, cfg.RoleCacheTTL)

	storage, uploadDir := openStorage(cfg)

	transport, err := services.NewMailTransport(cfg.Mail)

	if err != nil {
		log.Fatalf("Failed to configure mail: %v", err)
	}

	stores := services.NewStores(conn)
	hub := events.NewHub()

	h := handlers.New(handlers.Config{
		DB: conn,
		Accounts: services.NewAccountService(stores.Users, tokens, auth.BcryptHasher{}, services.NewMailer(transport), services.AccountConfig{
			VerifyURLPrefix: cfg.PublicURL + "/api/v1/auth/verify-email",
			ResetURLPrefix:  cfg.ForgotPasswordRedirectURL,
		}),
		Projects:   services.NewProjectService(conn, stores, storage, roleCache, hub),
		Tasks:      services.NewTaskService(conn, stores, storage, hub),
		Hub:        hub,
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
	})

	r := router.NewRouter(router.Deps{
		Handler:       h,
		Authenticator: middleware.NewAuthenticator(tokens, stores.Users),
		Gate:          middleware.NewProjectGate(store.NewCachedRoles(stores.Memberships, roleCache), stores.Projects),
		UploadDir:     uploadDir,
		UploadPrefix:  uploadPrefix,
	})

	jobs := scheduler.NewScheduler()
	jobs.AddJob(scheduler.TokenSweepJob, cfg.TokenSweepInterval, scheduler.TokenSweeper(stores.Users, nil))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	jobs.Stop()

	if redisClient != nil {
		redisClient.Close()
	}

	if err := tp.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Tracer provider shutdown failed")
	}

	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
}

func configureLogging(cfg config.Config) {
	response.SetProduction(cfg.IsProduction())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		log.SetFormatter(&log.JSONFormatter{})
		log.SetLevel(log.InfoLevel)
		return
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.DebugLevel)
}

// connectRedis returns nil when no URL is configured or the server is
// unreachable; role lookups then go straight to the database.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)

	if err != nil {
		log.WithError(err).Warn("Invalid REDIS_URL, role cache disabled")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, role cache disabled")
		client.Close()
		return nil
	}

	log.Info("Role cache connected to Redis")
	return client
}

func openStorage(cfg config.Config) (attachments.Storage, string) {
	switch cfg.Storage.Driver {
	case "azure":
		storage, err := attachments.NewAzureStorage(cfg.Storage.AzureConnectionString, cfg.Storage.AzureContainer)
		if err != nil {
			log.Fatalf("Failed to configure Azure storage: %v", err)
		}
		return storage, ""
	case "local", "":
		storage, err := attachments.NewLocalStorage(cfg.Storage.UploadDir, cfg.PublicURL+uploadPrefix)
		if err != nil {
			log.Fatalf("Failed to configure local storage: %v", err)
		}
		return storage, cfg.Storage.UploadDir
	default:
		log.Fatalf("Unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
		return nil, ""
	}
}

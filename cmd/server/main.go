package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ayush/flatblog/internal/auth"
	"github.com/ayush/flatblog/internal/config"
	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/middleware"
	"github.com/ayush/flatblog/internal/posts"
	"github.com/ayush/flatblog/internal/store"
	"github.com/ayush/flatblog/internal/upload"
)

const loginPath = "/api/auth/login"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stdout,
	})
	ctx := context.Background()
	loc := cfg.Location()

	// ── Record store ─────────────────────────────────────────
	records := store.NewRecordStore(cfg.Storage.DataDir, cfg.Storage.UploadDir)
	if err := records.EnsureStorage(); err != nil {
		logging.Fatal().Err(err).Msg("prepare storage")
	}
	for _, w := range records.Warnings() {
		logging.Warn().Msg(w)
	}

	// ── Sessions ─────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.Session.Store == string(auth.SessionStoreRedis) {
		rdb, err = store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logging.Fatal().Err(err).Msg("redis connect")
		}
		defer rdb.Close()
	}
	sessions, err := auth.OpenSessions(auth.SessionOptions{
		Store: auth.SessionStoreType(cfg.Session.Store),
		TTL:   cfg.Session.TTL,
		Path:  cfg.Session.Path,
		Redis: rdb,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("open session store")
	}
	defer sessions.Close()

	// ── MinIO mirror ─────────────────────────────────────────
	var mirror upload.FileStore
	if cfg.Minio.Enabled {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.Minio.Endpoint, cfg.Minio.AccessKey,
			cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL,
		)
		if err != nil {
			logging.Fatal().Err(err).Msg("minio connect")
		}
		mirror = minioStore
	}

	// ── Services ─────────────────────────────────────────────
	images := upload.NewHandler(upload.Config{
		Dir:      cfg.Storage.UploadDir,
		WebPath:  cfg.PublicUploadPath(),
		MaxSize:  upload.MaxImageSize,
		Mirror:   mirror,
		Location: loc,
	})
	tokens := auth.NewResetTokens(records, loc)
	authService := auth.NewService(records, tokens, auth.ServiceConfig{
		Admin: auth.AdminCredentials{
			Username:     cfg.Admin.Username,
			Password:     cfg.Admin.Password,
			PasswordHash: cfg.Admin.PasswordHash,
		},
		BaseURL:  cfg.Server.BaseURL,
		ResetTTL: cfg.Reset.TokenTTL,
		Location: loc,
	})
	postService := posts.NewService(records, images, loc)

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(authService, sessions, auth.CookieConfig{
		Name: cfg.Session.CookieName,
		TTL:  cfg.Session.TTL,
	})
	postHandler := posts.NewHandler(postService, upload.MaxImageSize)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.LoadIdentity(sessions, cfg.Session.CookieName))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "site": cfg.Server.SiteName})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Uploaded images
	uploadPrefix := "/" + cfg.PublicUploadPath() + "/"
	r.Handle(uploadPrefix+"*", http.StripPrefix(uploadPrefix, upload.FileServer(cfg.Storage.UploadDir)))

	// Public posts
	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", postHandler.Archive)
		r.Get("/{id}", postHandler.Get)
	})

	// Auth routes (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/register", authHandler.Register)
		r.Post("/forgot", authHandler.Forgot)
		r.Get("/reset", authHandler.CheckReset)
		r.Post("/reset", authHandler.Reset)
		r.With(middleware.RequireLogin(loginPath)).Get("/me", authHandler.Me)
	})

	// Admin routes (protected)
	r.Route("/api/admin/posts", func(r chi.Router) {
		r.Use(middleware.RequireLogin(loginPath))
		r.Get("/", postHandler.AdminList)
		r.Post("/", postHandler.Create)
		r.Put("/{id}", postHandler.Update)
		r.Delete("/{id}", postHandler.Delete)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("session_store", cfg.Session.Store).Msg("blog listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}

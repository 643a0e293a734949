package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/journal"
	"dataghost-gateway/internal/shared/config"
	"dataghost-gateway/internal/shared/server"
	"dataghost-gateway/internal/shared/server/middleware"
	"dataghost-gateway/internal/shared/storage/db"
	"dataghost-gateway/internal/shared/storage/object"
	localstore "dataghost-gateway/internal/shared/storage/object/local"
	s3store "dataghost-gateway/internal/shared/storage/object/s3"
	"dataghost-gateway/internal/workspace"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Client   *api.Client
	Journal  journal.Repo
	Sessions *workspace.SessionStore
	Handler  *workspace.Handler
}

// Build prepares shared dependencies and registers routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo journal.Repo
	if sqlDB != nil {
		repo = &journal.PGRepo{DB: sqlDB}
	} else {
		repo = journal.NewMemoryRepo()
	}

	client := api.NewClient(
		cfg.APIBaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}),
		api.WithObserver(journal.NewRecorder(repo)),
	)

	opts := workspace.Options{
		SummaryStaleTime: cfg.SummaryStaleTime,
		DefaultVoiceID:   cfg.DefaultVoiceID,
		Audio:            store,
	}
	sessions := workspace.NewSessionStore(func(id string) *workspace.Session {
		return workspace.NewSession(id, client, opts)
	}, workspace.WithIdleTTL(cfg.SessionIdleTTL), workspace.WithMaxSessions(cfg.MaxSessions))
	handler := workspace.NewHandler(sessions, repo)

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Client:   client,
		Journal:  repo,
		Sessions: sessions,
		Handler:  handler,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:      cfg,
		Workspace:   handler,
		RateLimiter: middleware.NewRateLimiter(nil),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; journal kept in memory")
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; journal kept in memory: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; journal kept in memory: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

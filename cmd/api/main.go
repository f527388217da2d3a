package main

import (
	"context"
	"database/sql"
	"embed"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
	"github.com/deskmail/deskmail/cmd/api/attachments"
	"github.com/deskmail/deskmail/cmd/api/contacts"
	"github.com/deskmail/deskmail/cmd/api/events"
	"github.com/deskmail/deskmail/cmd/api/inbound"
	"github.com/deskmail/deskmail/cmd/api/inboxes"
	"github.com/deskmail/deskmail/cmd/api/metrics"
	"github.com/deskmail/deskmail/cmd/api/tickets"
	"github.com/deskmail/deskmail/internal/ratelimit"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	_ = godotenv.Load()
	cfg := apppkg.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// Migrate (embedded goose) using pgx stdlib driver
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("goose dialect")
	}
	sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("sql open for goose")
	}
	defer sqldb.Close()
	if err := goose.UpContext(ctx, sqldb, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrate up")
	}

	var mc *minio.Client
	if cfg.MinIOEndpoint != "" {
		mc, err = minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccess, cfg.MinIOSecret, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio init")
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	var store apppkg.ObjectStore
	if mc != nil {
		store = mc
	} else if cfg.FileStorePath != "" {
		if err := os.MkdirAll(cfg.FileStorePath, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.FileStorePath).Msg("create filestore path")
		}
		store = &apppkg.FsObjectStore{Base: cfg.FileStorePath}
	}

	a := apppkg.NewApp(cfg, pool, store, rdb)
	registerRoutes(a, rdb)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        a.R,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Info().Str("addr", cfg.Addr).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("listen")
	}
}

func registerRoutes(a *apppkg.App, rdb *redis.Client) {
	a.R.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	a.R.GET("/metrics", metrics.Handler())

	// Inbound email webhooks, per-source rate limited
	hooks := a.R.Group("/webhooks/inbound")
	if a.Cfg.WebhookRatePerMin > 0 {
		rl := ratelimit.New(rdb, a.Cfg.WebhookRatePerMin, time.Minute)
		hooks.Use(rl.Middleware(func(c *gin.Context) string { return c.ClientIP() }))
	}
	hooks.POST("/mailgun", inbound.Mailgun(a))
	hooks.POST("/forwardemail", inbound.ForwardEmail(a))
	hooks.POST("/raw", inbound.Raw(a))

	// Internal read surface; authentication is terminated upstream.
	a.R.POST("/inboxes", inboxes.Create(a))
	a.R.GET("/inboxes", inboxes.List(a))
	a.R.GET("/contacts", contacts.List(a))
	a.R.GET("/contacts/:id", contacts.Get(a))
	a.R.GET("/tickets", tickets.List(a))
	a.R.GET("/tickets/:id", tickets.Get(a))
	a.R.GET("/tickets/:id/messages", tickets.Messages(a))
	a.R.GET("/tickets/:id/attachments", attachments.List(a))
	a.R.GET("/tickets/:id/attachments/:attID", attachments.Get(a))
	a.R.GET("/events", events.Stream(a))
}

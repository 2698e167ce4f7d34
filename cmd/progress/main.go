package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/events"
	"github.com/example/watch-progress/internal/handlers"
	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/platform/config"
	"github.com/example/watch-progress/internal/platform/db"
	"github.com/example/watch-progress/internal/platform/httpserver"
	"github.com/example/watch-progress/internal/platform/logging"
	"github.com/example/watch-progress/internal/platform/natsconn"
	"github.com/example/watch-progress/internal/platform/run"
	"github.com/example/watch-progress/internal/progress"
	"github.com/example/watch-progress/internal/relay"
	"github.com/example/watch-progress/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, ready, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}
	st = wrapCache(st, log)

	var verifier *auth.JWTVerifier
	if secret := strings.TrimSpace(os.Getenv("JWT_SECRET")); secret != "" {
		verifier = &auth.JWTVerifier{Secret: []byte(secret)}
		log.Info("bearer token identity enabled")
	}

	// Progress events are optional: without NATS the service still serves
	// and persists, it just stops telling anyone about it.
	var nc *nats.Conn
	var publisher *events.Publisher
	nc, err = natsconn.Connect(natsconn.Options{})
	if err != nil {
		log.Warn("nats unavailable, progress events disabled", zap.Error(err))
	} else {
		publisher, err = events.New(nc, log)
		if err != nil {
			log.Warn("jetstream unavailable, progress events disabled", zap.Error(err))
			publisher = nil
		}
	}

	svc := progress.NewService(st, publisher, log)
	hub := relay.NewHub(log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/progress/{video_id}", handlers.GetProgress(svc))
		r.Post("/v1/progress/{video_id}", handlers.UpdateProgress(svc))
		r.Delete("/v1/progress/{video_id}", handlers.ResetProgress(svc))
		r.Get("/v1/progress/{video_id}/watched", handlers.CheckWatched(svc))
		r.Get("/v1/progress/{video_id}/live", relay.ServeWS(hub, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go hub.Run(ctx)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			if nc != nil {
				nc.Close()
			}
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the ProgressStore backend. In production
// (APP_ENV=production) it requires a working Postgres connection and
// terminates the process otherwise.
func initStore(cfg config.AppConfig, log *zap.Logger) (progress.Store, func() error, func()) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory progress store (development only)")
		return store.NewInMemoryStore(), nil, nil
	}

	pool, err := db.Open(context.Background())
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewInMemoryStore(), nil, nil
	}

	log.Info("progress store: postgres")
	pg := store.NewPostgresStore(pool)
	ready := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pg.Ping(ctx)
	}
	return pg, ready, pool.Close
}

// wrapCache layers the Redis read cache over the store when REDIS_URL is set.
func wrapCache(st progress.Store, log *zap.Logger) progress.Store {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		return st
	}

	ttl := 5 * time.Minute
	if v := strings.TrimSpace(os.Getenv("REDIS_CACHE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}

	cached, err := store.NewCachedStore(st, url, ttl, log)
	if err != nil {
		log.Warn("redis cache disabled", zap.Error(err))
		return st
	}
	log.Info("redis progress cache enabled", zap.Duration("ttl", ttl))
	return cached
}

// Package app wires configuration, stores and services into a runnable
// HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AnshRaj112/rockhunter-backend/internal/config"
	"github.com/AnshRaj112/rockhunter-backend/internal/database"
	"github.com/AnshRaj112/rockhunter-backend/internal/handlers"
	"github.com/AnshRaj112/rockhunter-backend/internal/mapview"
	"github.com/AnshRaj112/rockhunter-backend/internal/middleware"
	"github.com/AnshRaj112/rockhunter-backend/internal/routes"
	"github.com/AnshRaj112/rockhunter-backend/internal/services"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

// App holds everything main needs to serve and shut down.
type App struct {
	Router http.Handler

	cfg      *config.Config
	logger   *slog.Logger
	sync     *services.SyncService
	poller   *services.SnapshotPoller
	listener *services.ListenerAdapter
	hub      *services.RockHub
	limiters *middleware.Limiters

	sqlDB       *sql.DB
	mongoClient *mongo.Client
	redisClient *redis.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   func()
}

// New connects the configured stores and builds the router. Background
// work does not start until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, limiters: middleware.NewLimiters()}

	kv, err := a.openLocal()
	if err != nil {
		a.Close()
		return nil, err
	}

	var remote store.RemoteStore
	if cfg.RemoteConfigured() {
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mongoClient = client
		remote = store.NewMongoRemote(db, cfg.MongoCollection)
	} else {
		logger.Warn("MONGODB_URI not set, rocks are shared through the snapshot only")
	}

	// Writable snapshot queue: Redis when available, a JSON file otherwise
	var queue interface {
		store.SnapshotStore
		store.Notifier
	}
	if cfg.RedisURI != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURI, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = client
		queue = store.NewRedisSnapshot(client, logger)
	} else {
		queue = store.NewFileSnapshot(cfg.SnapshotFile, logger)
	}
	snapshot := &store.SharedSnapshot{Queue: queue}
	if cfg.SnapshotURL != "" {
		snapshot.Source = store.NewHTTPSnapshot(cfg.SnapshotURL, nil)
	}

	identity := services.NewIdentityService(kv)
	a.hub = services.NewRockHub(logger)
	frames := mapview.NewFrameSurface(a.hub.Broadcast)

	a.sync = services.NewSyncService(services.SyncDeps{
		Local:    store.NewLocalRocks(kv),
		Remote:   remote,
		Snapshot: snapshot,
		Identity: identity,
		Surface:  frames,
		Timeout:  cfg.RemoteTimeout,
		Logger:   logger,
	})
	if err := a.sync.Load(); err != nil {
		a.Close()
		return nil, err
	}

	a.poller = services.NewSnapshotPoller(a.sync, cfg.SnapshotPollInterval, cfg.SnapshotInitialDelay, logger, queue)
	if remote != nil {
		a.listener = services.NewListenerAdapter(a.sync, remote, a.poller.Trigger, logger)
	}

	var uploader services.PhotoUploader
	if cfg.CloudinaryConfigured() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Warn("failed to initialize Cloudinary, photos stay inline", "err", err)
		} else {
			uploader = cld
			logger.Info("Cloudinary service initialized")
		}
	}

	h := handlers.New(handlers.Deps{
		Sync:          a.sync,
		Identity:      identity,
		Photos:        services.NewPhotoProcessor(uploader, logger),
		Hub:           a.hub,
		Frames:        frames,
		SnapshotQueue: queue,
		Logger:        logger,
	})
	a.Router = a.router(h)
	return a, nil
}

func (a *App) openLocal() (store.KV, error) {
	switch a.cfg.LocalStoreDriver {
	case "memory":
		a.logger.Warn("local store is in memory, rocks are lost on restart")
		return store.NewMemoryKV(a.cfg.LocalQuotaBytes), nil
	case database.DriverSQLite, database.DriverPostgres:
		db, err := database.OpenLocal(a.cfg.LocalStoreDriver, a.cfg.LocalStoreDSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.sqlDB = db
		dialect := store.DialectPostgres
		if a.cfg.LocalStoreDriver == database.DriverSQLite {
			dialect = store.DialectSQLite
		}
		return store.NewSQLKV(db, dialect, a.cfg.LocalQuotaBytes), nil
	default:
		return nil, fmt.Errorf("unknown LOCAL_STORE_DRIVER %q", a.cfg.LocalStoreDriver)
	}
}

func (a *App) router(h *handlers.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(a.cfg.AllowedOrigins))

	opts := routes.Options{
		AdminToken:  a.cfg.AdminToken,
		UploadLimit: a.limiters.UploadRateLimit(),
	}

	// Production: SecurityHeaders → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit when Redis is up
	if a.cfg.IsProduction() {
		for _, mw := range a.limiters.ProductionSecurity() {
			r.Use(mw)
		}
		a.logger.Info("production security enabled", "limits", "security headers, per-IP, login")
	} else {
		if a.redisClient != nil {
			r.Use(middleware.NewRedisRateLimiter(a.redisClient, a.logger).Middleware)
		} else {
			r.Use(a.limiters.GlobalRateLimit())
		}
		opts.LoginLimit = a.limiters.LoginRateLimit()
	}

	routes.SetupRoutes(r, h, opts)
	return r
}

// Start launches the snapshot poller, the remote listener and limiter
// cleanup. They stop on Close.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Go(func() { a.poller.Run(ctx) })
	a.wg.Go(func() { a.limiters.RunCleanup(ctx.Done()) })

	if a.listener != nil {
		stop, err := a.listener.Start(ctx)
		if err != nil {
			a.logger.Warn("remote listener not started", "err", err)
		} else {
			a.stop = stop
		}
	}
	a.logger.Info("sync started", "mode", a.sync.Mode(), "rocks", len(a.sync.Rocks()))
}

// Close stops background work and disconnects stores. Safe to call after a
// failed New.
func (a *App) Close() {
	if a.stop != nil {
		a.stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.hub != nil {
		a.hub.Close()
	}
	if a.mongoClient != nil {
		if err := database.DisconnectMongo(a.mongoClient); err != nil {
			a.logger.Warn("mongo disconnect failed", "err", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close failed", "err", err)
		}
	}
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Warn("local store close failed", "err", err)
		}
	}
}

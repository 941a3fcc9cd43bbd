package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/foxfit/backend/config"
	"github.com/foxfit/backend/internal/access"
	"github.com/foxfit/backend/internal/auth"
	"github.com/foxfit/backend/internal/cache"
	"github.com/foxfit/backend/internal/chat"
	"github.com/foxfit/backend/internal/database"
	"github.com/foxfit/backend/internal/handlers"
	"github.com/foxfit/backend/internal/ingest"
	"github.com/foxfit/backend/internal/lifecycle"
	"github.com/foxfit/backend/internal/live"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/media"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/registry"
	"github.com/foxfit/backend/internal/repository"
	"github.com/foxfit/backend/internal/repository/memory"
	"github.com/foxfit/backend/internal/repository/postgres"
	"github.com/foxfit/backend/internal/websocket"
)

// stores is the datastore the services run against.
type stores struct {
	users    repository.UserRepository
	channels repository.ChannelRepository
	videos   repository.VideoRepository
	chat     repository.ChatRepository
	tx       repository.Transactor
	health   func(ctx context.Context) error
	close    func() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// Redis is optional: without it rate limits and viewer counts are per instance.
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Warn("running without Redis: rate limits and viewer counts are local")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	vault, err := media.NewLocalStore(cfg.Media.Root)
	if err != nil {
		return err
	}

	if err := handlers.RegisterValidators(); err != nil {
		return err
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	reg := registry.New(st.channels, st.tx)
	lc := lifecycle.New(st.videos)
	sessions := live.NewStateMachine(st.channels, st.videos, lc, st.tx)
	gateway := ingest.NewGateway(reg, sessions, cfg.Ingest.Timeout)
	feed := chat.NewFeed(st.chat, st.videos)
	delivery := media.NewDelivery(st.videos, access.NewAuthorizer(st.channels), vault, cfg.Media.RetryDelay)

	limiter := middleware.NewRateLimiter(float64(cfg.API.RateLimitMessagesPerSec), cfg.API.RateLimitBurst)
	var viewers websocket.ViewerTracker
	if redisClient != nil {
		limiter.WithShared(redisClient, "chat")
		viewers = redisClient
	}

	hub := websocket.NewHub(viewers)
	feed.SetNotifier(hub)
	sessions.Observe(hub)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		HookToken:      cfg.Ingest.HookToken,
		JWT:            jwtService,
		ChatLimiter:    limiter,
		Auth:           handlers.NewAuthHandler(st.users, jwtService),
		Channels:       handlers.NewChannelHandler(reg, st.videos),
		Videos:         handlers.NewVideoHandler(lc, delivery),
		Chat:           handlers.NewChatHandler(feed),
		Ingest:         handlers.NewIngestHandler(gateway),
		WS:             websocket.NewHandler(hub, st.videos, feed, limiter, cfg.CORS.AllowedOrigins),
		Health:         st.health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Server.Env, "storage": cfg.Storage.Driver}).
			Info("starting foxfit server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(cfg *config.Config, log *logrus.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory storage: data is lost on restart")
		s := memory.New()
		return &stores{
			users:    s.Users(),
			channels: s.Channels(),
			videos:   s.Videos(),
			chat:     s.Chat(),
			tx:       s,
			close:    func() error { return nil },
		}, nil

	default:
		db, err := database.NewPostgresDB(cfg.GetDSN(), cfg.Database.MaxOpen, cfg.Database.MaxIdle)
		if err != nil {
			return nil, err
		}

		log.Info("running database migrations")
		if err := database.RunMigrations(db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return &stores{
			users:    postgres.NewUserRepository(db),
			channels: postgres.NewChannelRepository(db),
			videos:   postgres.NewVideoRepository(db),
			chat:     postgres.NewChatRepository(db),
			tx:       db,
			health:   db.PingContext,
			close:    db.Close,
		}, nil
	}
}

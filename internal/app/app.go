package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/redis"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/supportchat-server/internal/transport/http"
)

// TokenTTL is the lifetime of tokens minted by the token command.
const TokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	closers         []io.Closer
	log             *zerolog.Logger
}

// JWTConfig builds the token configuration from cfg. It returns nil when no
// secret is configured.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	if cfg.JWTSecret == "" {
		return nil
	}
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      TokenTTL,
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	var typing store.TypingStore = st
	if cfg.TypingBackend == config.TypingBackendRedis {
		rts, err := redis.NewTypingStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init typing store: %w", err)
		}
		a.closers = append(a.closers, rts)
		typing = rts
		logger.Info().Str("redis_addr", cfg.Redis.Addr).Msg("redis typing store initialized")
	}

	authService := auth.NewService(st, JWTConfig(cfg), cfg.RequireToken)
	if cfg.RequireToken {
		logger.Info().Msg("token authentication required")
	}

	a.hub = core.NewHub(st, core.Options{
		Authenticator: authService,
		Typing:        typing,
		StoreTimeout:  cfg.StoreTimeout,
		TypingTTL:     cfg.TypingTTL,
		PurgeInterval: cfg.TypingPurgeInterval,
		Logger:        logger,
	})
	a.server = transporthttp.NewServer(a.hub, authService, st, cfg, logger)

	return a, nil
}

// Run starts the hub and HTTP server and blocks until context cancellation
// or a fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

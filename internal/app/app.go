package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

const identityCachePrefix = "wirechat:identity:"

// App wires together storage, auth, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// OpenStore opens the SQLite database and applies the schema.
func OpenStore(ctx context.Context, path string) (*sqlite.SQLiteStore, error) {
	st, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	var cache auth.IdentityCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.cleanup()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = auth.NewRedisIdentityCache(a.redis, identityCachePrefix, cfg.Redis.CacheTTL)
		logger.Info().Str("redis_addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("identity cache enabled")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig, cache, logger)

	a.server = transporthttp.NewServer(authService, st, cfg, logger)
	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// Hijacked websocket connections are not tracked by Shutdown; tie them to ctx instead.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/image-redirect/internal/config"
	"github.com/Sternrassler/image-redirect/pkg/cache"
	"github.com/Sternrassler/image-redirect/pkg/logging"
	"github.com/Sternrassler/image-redirect/pkg/session"
	"github.com/Sternrassler/image-redirect/pkg/upstream"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigPath), "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	store, closeStore, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()

	upstreamClient, err := upstream.New(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create upstream client: %w", err)
	}

	sessionKey, err := cfg.SessionKey()
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(session.Config{
		CookieName: cfg.Session.CookieName,
		Key:        sessionKey,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(store, upstreamClient, sessions),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", cfg.Upstream.BaseURL).
			Str("cache_backend", cfg.Cache.Backend).
			Str("user_agent", cfg.Upstream.UserAgent).
			Msg("Starting image redirect server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newStore builds the configured resolver cache. The returned func releases
// backend connections.
func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	if cfg.Backend != config.BackendRedis {
		return cache.NewMemory(), func() {}, nil
	}

	opts, err := redisOptions(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	redisClient := redis.NewClient(opts)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	// Mappings left by a previous process are dropped.
	store := cache.NewRedisStore(redisClient, cfg.Redis.Namespace)
	if err := store.Reset(ctx); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("reset redis cache: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Str("key", store.Key()).Msg("Connected to Redis")

	return store, func() { redisClient.Close() }, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if !cfg.RedisURL() {
		return &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}, nil
	}

	opts, err := redis.ParseURL(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password == "" {
		opts.Password = cfg.Password
	}
	return opts, nil
}

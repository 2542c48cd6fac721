package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
	"github.com/BuzzLyutic/taskmaster/internal/config"
	"github.com/BuzzLyutic/taskmaster/internal/feed"
	"github.com/BuzzLyutic/taskmaster/internal/handler"
	"github.com/BuzzLyutic/taskmaster/internal/repo"
	"github.com/BuzzLyutic/taskmaster/internal/service"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	if cfg.InsecureSecret() {
		logger.Warn("JWT_SECRET is not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Подключаем БД
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to Database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping the Database", zap.Error(err))
	}
	logger.Info("Successfully connected to the Database!")

	keys, closeKeys := keyStore(ctx, cfg, logger)
	defer closeKeys()

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Issuer:     "taskmaster",
	})
	gateway := auth.NewGateway(
		repo.NewUserRepo(pool),
		auth.NewPasswordHasher(cfg.BcryptCost),
		tokens,
		keys,
		logger,
		providers(cfg, logger)...,
	)

	broker := feed.NewBroker(logger, cfg.FeedBuffer)
	listener := feed.NewListener(pool, broker, logger)

	taskHandler := handler.NewTaskHandler(service.NewTaskService(repo.NewTaskRepo(pool)), broker, logger, cfg.FeedKeepAlive)
	authHandler := handler.NewAuthHandler(gateway, logger)

	srv := handler.NewServer(":"+cfg.Port, handler.NewRouter(taskHandler, authHandler, gateway), 10*time.Second)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listener.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped successfully!")
}

// keyStore uses Redis when REDIS_ADDR is set and an in-process store
// otherwise. The in-process store only works for a single instance.
func keyStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.KeyStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory key store")
		return auth.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return auth.NewRedisStore(client, "taskmaster:"), func() { client.Close() }
}

func providers(cfg config.Config, logger *zap.Logger) []*auth.Provider {
	var out []*auth.Provider
	if cfg.Google.Enabled() {
		out = append(out, auth.GoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.PublicURL+"/auth/google/callback"))
	}
	if cfg.GitHub.Enabled() {
		out = append(out, auth.GitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.PublicURL+"/auth/github/callback"))
	}
	for _, p := range out {
		logger.Info("OAuth provider enabled", zap.String("provider", p.Name))
	}
	return out
}

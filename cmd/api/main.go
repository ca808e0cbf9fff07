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
	"go.uber.org/zap"

	"crmapi/activity"
	"crmapi/auth"
	"crmapi/company"
	"crmapi/config"
	"crmapi/contact"
	"crmapi/dashboard"
	"crmapi/db"
	"crmapi/deal"
	"crmapi/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "crm-api")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("crm api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warnInsecureConfig(cfg, logger)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewServer(pool, cfg, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting crm api", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down crm api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func warnInsecureConfig(cfg *config.Config, logger *zap.Logger) {
	if cfg.UsesDevJWTSecret() {
		logger.Warn("JWT_SECRET is not set, tokens are signed with the public development secret")
	}
}

// NewServer wires the Postgres-backed services.
func NewServer(pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		logger:           logger,
		companyService:   company.NewService(pool, nil),
		contactService:   contact.NewService(pool, nil),
		dealService:      deal.NewService(pool, nil),
		activityService:  activity.NewService(pool, nil),
		dashboardService: dashboard.NewService(pool, nil),
		userService:      auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		db:               pool,
		allowedOrigins:   cfg.CORS.AllowedOrigins,
	}
}

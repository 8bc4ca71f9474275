// Package server wires the estately auth service together: storage backends,
// token codec, password hasher, the HTTP API, the gRPC health endpoint and
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"github.com/dmitrijs2005/estately/internal/server/config"
	"github.com/dmitrijs2005/estately/internal/server/httpapi"
	"github.com/dmitrijs2005/estately/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/estately/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/estately/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	service *services.UserService
	router  *httpapi.Router
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend, os.Stdout, c.Debug)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	rm, err := app.openStores(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	codec := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	hasher := auth.NewHasher(c.BcryptCost, c.HashWorkers)

	app.service = services.NewUserService(app.db, rm, codec, hasher, logger)
	app.router = httpapi.NewRouter(app.service, httpapi.Options{
		Logger:             logger,
		SecureCookies:      c.IsProduction(),
		LoginRatePerMinute: c.LoginRatePerMinute,
		LoginBurst:         c.LoginBurst,
	})

	if c.SecretKey == config.DevSecretKey {
		logger.Warn(ctx, "signing tokens with the development secret", "env", config.EnvSecretKey)
	}

	return app, nil
}

// openStores connects the configured backends and applies migrations.
func (app *App) openStores(ctx context.Context) (repomanager.RepositoryManager, error) {
	c := app.config

	if c.SessionBackend == config.SessionBackendMemory {
		app.logger.Warn(ctx, "using in-memory store; data is lost on restart")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db connect error: %w", err)
	}

	var rm repomanager.RepositoryManager
	switch c.SessionBackend {
	case config.SessionBackendRedis:
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		rm, err = repomanager.NewPostgresRedisRepositoryManager(db, app.redis)
	default:
		rm, err = repomanager.NewPostgresRepositoryManager(db)
	}
	if err != nil {
		return nil, err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app.logger.Info(ctx, "stores ready", "session_backend", c.SessionBackend)
	return rm, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC until a signal arrives or one of the servers
// fails. The first server error is returned.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.router, app.logger, httpapi.Timeouts{
			Read:     app.config.ReadTimeout,
			Write:    app.config.WriteTimeout,
			Idle:     app.config.IdleTimeout,
			Shutdown: app.config.ShutdownTimeout,
		})
		if err := s.Run(gctx); err != nil {
			app.logger.Error(gctx, "http server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service, app.config.HealthCheckInterval)
		if err := s.Run(gctx); err != nil {
			app.logger.Error(gctx, "grpc server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.router.RunJanitor(gctx)
		return nil
	})

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var firstErr error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	// stdout cannot be fsynced on most platforms; a failed flush is not fatal
	_ = logging.Sync(app.logger)
	return firstErr
}

// Package server wires the vidauth components together and runs the HTTP
// and gRPC servers until the process is told to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/assets"
	"github.com/dmitrijs2005/vidauth/internal/server/auth"
	"github.com/dmitrijs2005/vidauth/internal/server/config"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	"github.com/dmitrijs2005/vidauth/internal/server/httpapi"
	"github.com/dmitrijs2005/vidauth/internal/server/metrics"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vidauth/internal/server/services"
	"github.com/dmitrijs2005/vidauth/internal/server/telemetry"

	gs "github.com/dmitrijs2005/vidauth/internal/server/grpc"
)

const redisKeyPrefix = "vidauth:refresh:"

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repomanager.RepositoryManager
	sessions *services.SessionManager
	guard    *guard.Guard
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	closers []func() error
}

// NewApp builds every dependency from c. Resources opened before a failure
// are released before NewApp returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	gin.SetMode(c.GinMode)

	app := &App{config: c, logger: logger}
	ready := false
	defer func() {
		if !ready {
			app.close(ctx)
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, c.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}
	app.closers = append(app.closers, func() error { return shutdownTracing(context.Background()) })

	tokens, err := app.openRefreshStore(ctx)
	if err != nil {
		return nil, err
	}

	app.store, err = app.openStore(ctx, tokens)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewHasher(c.BcryptCost)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	uploader, err := app.newUploader(ctx)
	if err != nil {
		return nil, fmt.Errorf("asset backend init error: %w", err)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	app.sessions = services.NewSessionManager(app.store, hasher, issuer, uploader, logger, app.metrics)
	app.guard = guard.New(issuer, app.store.Users(), logger, app.metrics)

	ready = true
	return app, nil
}

// openRefreshStore returns nil when refresh tokens live next to the users.
func (app *App) openRefreshStore(ctx context.Context) (refreshtokens.Repository, error) {
	c := app.config
	if c.RefreshStore != config.RefreshStoreRedis {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	app.closers = append(app.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.logger.Info(ctx, "Refresh tokens stored in redis", "address", c.RedisAddr)
	return refreshtokens.NewRedisRepository(client, redisKeyPrefix, c.RefreshTokenValidityDuration), nil
}

func (app *App) openStore(ctx context.Context, tokens refreshtokens.Repository) (repomanager.RepositoryManager, error) {
	c := app.config
	switch c.StorageBackend {
	case config.BackendMemory:
		app.logger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		return repomanager.NewMemoryRepositoryManager(tokens), nil

	case config.BackendPostgres:
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		m := repomanager.NewPostgresRepositoryManager(db, tokens)
		app.closers = append(app.closers, m.Close)

		if err := m.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
}

func (app *App) newUploader(ctx context.Context) (assets.Uploader, error) {
	c := app.config
	if c.AssetBackend == config.AssetsS3 {
		return assets.NewS3Uploader(ctx, assets.S3Options{
			AccessKey:     c.S3RootUser,
			SecretKey:     c.S3RootPassword,
			Region:        c.S3Region,
			Endpoint:      c.S3BaseEndpoint,
			Bucket:        c.S3Bucket,
			PublicBaseURL: c.S3PublicBaseURL,
		})
	}
	if err := os.MkdirAll(c.PublicDir, 0o755); err != nil {
		return nil, err
	}
	return assets.NewLocalUploader(c.PublicDir, c.PublicBaseURL), nil
}

func (app *App) router() *gin.Engine {
	c := app.config
	publicDir := ""
	if c.AssetBackend != config.AssetsS3 {
		publicDir = c.PublicDir
	}

	return httpapi.NewRouter(httpapi.Deps{
		Sessions: app.sessions,
		Guard:    app.guard,
		Store:    app.store,
		Logger:   app.logger,
		Metrics:  app.metrics,
		Gatherer: app.registry,
	}, httpapi.Options{
		CORSOrigin:    c.CORSOrigin,
		CookieSecure:  c.CookieSecure,
		UploadDir:     c.UploadDir,
		MaxUploadSize: c.MaxUploadSize,
		PublicDir:     publicDir,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.router(), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.guard)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is done (SIGINT/SIGTERM cancel it) or a server fails,
// then releases the app's resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "Releasing resources", "error", err)
	}
}

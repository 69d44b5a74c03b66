package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/boltdb/bolt"
	"github.com/jmoiron/sqlx"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	LoadData(path string) error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	sqlClient      *sqlx.DB
	redisClient    *redis.Client
	boltDBClient   *bolt.DB
	storage        CatalogStorage
	service        CatalogServiceProvider
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	var app *App
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	err = os.MkdirAll(config.LogFolder, 0o700)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewClock(config.IsProduction)
	logsWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logsWriter, NewTickClock(clock))
	closer := func() {
		if ferr := flusher(); ferr != nil {
			fmt.Println("error during flushing of logs: ", ferr)
		}
		if cerr := logsWriter.Close(); cerr != nil {
			fmt.Println("error during closing of log file: ", cerr)
		}
	}

	// Setup the connection to the database, redis and boltDB servers.
	sqlClient, err := GetSQLClient(config)
	if err != nil {
		closer()
		return app, fmt.Errorf("failed to connect to %s database: %s", config.Database.Driver, err)
	}

	redisClient, err := GetRedisClient(config)
	if err != nil {
		_ = sqlClient.Close()
		closer()
		return app, fmt.Errorf("failed to connect to redis server: %s", err)
	}

	boltDBClient, err := GetBoltDBClient(config)
	if err != nil {
		_ = sqlClient.Close()
		_ = redisClient.Close()
		closer()
		return app, fmt.Errorf("failed to connect to boltDB server: %s", err)
	}

	// Setup the repositories and api services and routing.
	storage := NewSQLCatalogStorage(logger, config.Database.Driver, sqlClient)
	boltLogStorage := NewBoltLogEntryStorage(logger, &config.BoltDB, boltDBClient)
	redisQueue := NewRedisQueue(redisClient, config.Cache.Prefix)
	boltDBConsumer := NewBoltDBConsumer(logger, redisQueue, boltLogStorage)

	cache := NewNoopCache()
	if config.Cache.Enable {
		cache = NewRedisCache(logger, &config.Cache, redisClient)
	}

	ids := NewIDsHandler()
	catalogService := NewCatalogService(logger, config, clock, ids, storage, cache, redisQueue, boltLogStorage)
	site := NewCatalogAdminSite(logger, config, clock, ids, storage, catalogService)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		catalogService,
		site,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	boltDBConsume := func(ctx context.Context) error {
		return boltDBConsumer.Consume(ctx, AdminLogQueue)
	}

	app = &App{
		logger:       logger,
		config:       config,
		server:       srv,
		sqlClient:    sqlClient,
		redisClient:  redisClient,
		boltDBClient: boltDBClient,
		storage:      storage,
		service:      catalogService,
		cleanups: []func(){
			func() { _ = boltLogStorage.Close() },
			func() { _ = sqlClient.Close() },
			closer,
		},
		queueConsumers: []func(ctx context.Context) error{boltDBConsume},
	}

	if err = app.bootstrapStaffUser(context.Background()); err != nil {
		app.Clean()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create the bootstrap staff user: %s", err)
	}
	return app, nil
}

// bootstrapStaffUser creates the configured staff account when it does not exist yet.
func (app *App) bootstrapStaffUser(ctx context.Context) error {
	username := app.config.Admin.BootstrapUsername
	if username == "" {
		return nil
	}
	_, err := app.storage.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return err
	}
	if app.config.Admin.BootstrapPassword == "" {
		return errors.New("bootstrap password is required with a bootstrap username")
	}
	hash, err := HashPassword(app.config.Admin.BootstrapPassword)
	if err != nil {
		return err
	}
	user := User{Username: username, PasswordHash: hash, IsStaff: true, IsActive: true}
	if err = app.storage.AddUser(ctx, &user); err != nil {
		return err
	}
	app.logger.Info("bootstrap staff user created", zap.String("user.name", username), zap.Int64("user.id", user.ID))
	return nil
}

// LoadData loads a fixture file into the database then releases the app resources.
func (app *App) LoadData(path string) error {
	defer app.Clean()
	defer app.redisClient.Close()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := NewFixtureLoader(app.logger, app.storage, app.service, os.Stdout)
	report, err := loader.LoadFile(ctx, path)
	app.logger.Info("fixture loading finished",
		zap.String("fixture.path", path),
		zap.Int("fixture.loaded", report.Loaded),
		zap.Int("fixture.failed", report.Failed),
		zap.Error(err),
	)
	if err != nil {
		return err
	}
	fmt.Printf("Installed %d object(s) from %s. %d failed.\n", report.Loaded, path, report.Failed)
	return nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.database", app.config.Database.Driver),
		)
		err := app.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			app.logger.Info("api server graceful shutdown succeeded")
		case context.DeadlineExceeded:
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		_ = app.redisClient.Close()
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			f := func() error {
				return consume(gCtx)
			}
			g.Go(f)
		}
		return nil
	}
}

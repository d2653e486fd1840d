package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/nightshade-io/nightshade/config"
	invrepo "github.com/nightshade-io/nightshade/internal/repositories/investigation"
	profilerepo "github.com/nightshade-io/nightshade/internal/repositories/profile"
	userrepo "github.com/nightshade-io/nightshade/internal/repositories/user"
	"github.com/nightshade-io/nightshade/pkg/auth"
	"github.com/nightshade-io/nightshade/pkg/database"
	"github.com/nightshade-io/nightshade/pkg/enrich"
	"github.com/nightshade-io/nightshade/pkg/events"
	"github.com/nightshade-io/nightshade/pkg/graph"
	"github.com/nightshade-io/nightshade/pkg/kafka"
	"github.com/nightshade-io/nightshade/pkg/middleware"
	"github.com/nightshade-io/nightshade/pkg/redis"
	authroutes "github.com/nightshade-io/nightshade/pkg/routes/auth"
	"github.com/nightshade-io/nightshade/pkg/routes/graphview"
	"github.com/nightshade-io/nightshade/pkg/routes/health"
	investigationroutes "github.com/nightshade-io/nightshade/pkg/routes/investigation"
	profileroutes "github.com/nightshade-io/nightshade/pkg/routes/profile"
	scanroutes "github.com/nightshade-io/nightshade/pkg/routes/scan"
	taskroutes "github.com/nightshade-io/nightshade/pkg/routes/task"
	"github.com/nightshade-io/nightshade/pkg/scans"
	"github.com/nightshade-io/nightshade/pkg/startup"
	"github.com/nightshade-io/nightshade/pkg/tasks"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

const version = "0.3.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg)
	logger.WithField("app", cfg.AppName).Info("Starting nightshade API")

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
		)),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	sqlbuilder.DefaultFlavor = sqlbuilder.PostgreSQL

	// Postgres
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	db := database.NewDatabaseInstance(sqlxDB, logger)
	defer db.Close()

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	// Redis
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	// Neo4j
	graphClient, err := graph.NewClient(graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create graph client")
		os.Exit(1)
	}
	defer graphClient.Close(context.Background())

	entityRepo := graph.NewNeo4jRepository(graphClient, logger)
	assembler := graph.NewAssembler(entityRepo, graph.AssemblerConfig{
		NodeLimit:    cfg.GraphNodeLimit,
		MaxNodeLimit: cfg.GraphMaxNodeLimit,
	}, logger)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[*graph.Assembler](container, assembler); err != nil {
		logger.WithError(err).Error("Failed to register graph assembler")
		os.Exit(1)
	}

	// Kafka
	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	// Task engine
	var store tasks.Store
	if cfg.TaskStore == "redis" {
		store = tasks.NewRedisStore(redisClient, cfg.TaskStoreTTL, logger)
	} else {
		store = tasks.NewMemoryStore()
	}
	registry := scans.DefaultRegistry(cfg.ScanStepDelay)
	engine := tasks.NewEngine(store, registry, tasks.EngineConfig{
		WorkerCount: cfg.ScanWorkerCount,
		QueueSize:   cfg.ScanQueueSize,
	}, logger)

	recorder := enrich.NewRecorder(entityRepo, emitter, logger)
	engine.SetCompletionHook(recorder.Record)

	// Repositories and services
	investigations := invrepo.NewRepository(db, logger)
	profiles := profilerepo.NewRepository(db, logger)
	users := userrepo.NewRepository(db, logger)
	authService := auth.NewService(auth.Config{
		Secret:     cfg.AuthSecret,
		AccessTTL:  cfg.AuthAccessTTL,
		RefreshTTL: cfg.AuthRefreshTTL,
	}, redisClient)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))

	checker := health.NewChecker(map[string]health.Pinger{
		"database": health.PingerFunc(db.PingContext),
		"redis":    health.PingerFunc(redisClient.Ping),
		"graph":    health.PingerFunc(graphClient.VerifyConnectivity),
	}, version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	authroutes.NewHandler(authService, users, logger).Register(api.Group("/auth"))

	protected := api.Group("", middleware.Auth(authService))
	authroutes.NewHandler(authService, users, logger).RegisterProtected(protected.Group("/auth"))

	toolsGroup := protected.Group("/tools")
	taskGroup := protected.Group("/tasks")
	scanroutes.NewHandler(engine, logger).Register(toolsGroup, taskGroup)
	taskroutes.NewHandler(engine, logger).Register(taskGroup)
	graphview.NewHandler(logger).Register(protected.Group("/graph"))
	investigationroutes.NewHandler(investigations, logger).Register(protected.Group("/investigations"))
	profileroutes.NewHandler(profiles, investigations, logger).Register(protected.Group("/profiles"))

	// Startup sequencing
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(engine)
	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		server := &http.Server{
			Addr:              addr,
			ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
			WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
			IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}
		logger.Infof("Listening on %s", addr)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown HTTP server")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown tracer provider")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func runMigrations(cfg config.Config, logger ectologger.Logger, sqlxDB *sqlx.DB) error {
	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrationService.Migrate(cfg.DatabaseName, driver)
}

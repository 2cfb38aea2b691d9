package main

// @title           Broker Core API
// @version         1.0
// @description     Provisions and deprovisions services through an external service broker and tracks each service's last operation.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/broker"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/instrumented"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/broker-core/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/broker-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/broker-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/scheduler"
	"github.com/custodia-labs/broker-core/internal/adapters/driving/http"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
	"github.com/custodia-labs/broker-core/internal/core/services"
	"github.com/custodia-labs/broker-core/internal/metrics"
	"github.com/custodia-labs/broker-core/internal/worker"
)

var version = "dev"

func main() {
	cfg := loadConfig()
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// token <subject> prints an API token and exits
	if cfg.Mode == "token" {
		var args []string
		if len(os.Args) > 2 {
			args = os.Args[2:]
		}
		if err := printToken(cfg, args); err != nil {
			fatal("issue token", err)
		}
		return
	}

	if err := cfg.validate(); err != nil {
		fatal("invalid configuration", err)
	}
	logger.Info("broker-core starting",
		"version", version,
		"mode", cfg.Mode,
		"store_backend", cfg.StoreBackend,
		"job_backend", cfg.JobBackend)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ===== Metrics =====
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	checks := make(map[string]http.Pinger)

	// ===== Initialize PostgreSQL (optional) =====
	var db *postgres.DB
	if cfg.needsPostgres() {
		logger.Info("connecting to PostgreSQL")
		dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
		dbConfig.InitSchema = cfg.InitSchema
		var err error
		db, err = postgres.Connect(ctx, dbConfig)
		if err != nil {
			fatal("connect to database", err)
		}
		defer db.Close()
		checks["postgres"] = db
	}

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		logger.Info("connecting to Redis")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal("parse Redis URL", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fatal("connect to Redis", err)
		}
		defer redisClient.Close()
	}

	// ===== Service Store =====
	var store driven.ServiceStore
	switch cfg.StoreBackend {
	case "redis":
		store = redisadapter.NewServiceStore(redisClient)
	case "postgres":
		store = postgres.NewServiceStore(db)
	default:
		store = memory.NewServiceStore()
	}
	checks["store"] = store
	store = instrumented.NewServiceStore(store, instrumented.Chain(
		instrumented.StoreMetrics(m),
		instrumented.DebugLog(logger, "store"),
	))

	// ===== Broker Client =====
	var brokerClient driven.BrokerClient
	if cfg.BrokerURL != "" {
		brokerConfig := broker.DefaultConfig(cfg.BrokerURL)
		if cfg.BrokerTokenSecret != "" {
			brokerConfig.Signer = auth.NewAdapter(cfg.BrokerTokenSecret)
		}
		brokerClient = broker.NewClient(brokerConfig)
		logger.Info("using HTTP broker", "url", cfg.BrokerURL)
	} else {
		brokerClient = broker.NewSimulated(broker.SimulatedConfig{
			Polls:      cfg.SimulatedPolls,
			FailPlanID: cfg.SimulatedFailPlan,
		})
		logger.Warn("BROKER_URL not set, using simulated broker", "polls", cfg.SimulatedPolls)
	}
	brokerClient = instrumented.NewBrokerClient(brokerClient, instrumented.Chain(
		instrumented.BrokerMetrics(m),
		instrumented.DebugLog(logger, "broker"),
	))

	// ===== Job Scheduler =====
	var (
		jobScheduler driven.JobScheduler
		taskQueue    driven.TaskQueue
		inProcess    *scheduler.InProcess
	)
	if cfg.JobBackend == "queue" {
		if redisClient != nil {
			q, err := redisqueue.NewQueue(redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
			if err != nil {
				fatal("create task queue", err)
			}
			taskQueue = q
			logger.Info("using Redis task queue")
		} else {
			taskQueue = postgresqueue.NewQueue(db)
			logger.Info("using PostgreSQL task queue")
		}
		defer taskQueue.Close()
		checks["queue"] = taskQueue
		jobScheduler = scheduler.NewQueue(taskQueue, nil)
	} else {
		inProcess = scheduler.NewInProcess(scheduler.InProcessConfig{Metrics: m, Logger: logger})
		jobScheduler = inProcess
	}

	// ===== Services =====
	lifecycle := services.LifecycleConfig{
		Store:      store,
		Broker:     brokerClient,
		Scheduler:  jobScheduler,
		Metrics:    m,
		Logger:     logger,
		RetryDelay: cfg.RetryDelay,
	}
	apiServices := http.Services{
		Provision:   services.NewProvisionService(lifecycle),
		Deprovision: services.NewDeprovisionService(lifecycle),
		Query:       services.NewServiceQuery(store),
		Auth:        newAuthService(cfg),
	}
	if apiServices.Auth == nil {
		logger.Warn("JWT_SECRET not set, API authentication disabled")
	}

	// ===== Worker =====
	var w *worker.Worker
	if taskQueue != nil && cfg.Mode != "api" {
		w = worker.NewWorker(worker.WorkerConfig{
			TaskQueue:      taskQueue,
			Jobs:           services.NewJobFactory(lifecycle),
			Metrics:        m,
			Logger:         logger,
			Concurrency:    cfg.WorkerConcurrency,
			DequeueTimeout: cfg.WorkerDequeueTimeout,
		})
		if err := w.Start(ctx); err != nil {
			fatal("start worker", err)
		}
	}

	switch cfg.Mode {
	case "worker":
		waitForSignal()
	default:
		server := http.NewServer(http.Config{
			Host:           "0.0.0.0",
			Port:           cfg.Port,
			Version:        version,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
		}, apiServices, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), checks)

		// blocks until SIGINT/SIGTERM
		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
		}
	}

	// Graceful shutdown
	cancel()
	if w != nil {
		w.Stop()
	}
	if inProcess != nil {
		inProcess.Stop()
	}
	logger.Info("broker-core stopped")
}

func newAuthService(cfg config) driving.AuthService {
	if cfg.JWTSecret == "" {
		return nil
	}
	return services.NewAuthService(auth.NewAdapter(cfg.JWTSecret), cfg.APIAudience, cfg.TokenTTL)
}

func printToken(cfg config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: broker-core token <subject>")
	}
	authService := newAuthService(cfg)
	if authService == nil {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	token, err := authService.IssueToken(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutdown signal received, stopping")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqcontracts "progresshub/contracts/mq"
	"progresshub/internal/blob"
	"progresshub/internal/cache"
	"progresshub/internal/events"
	"progresshub/internal/handler"
	"progresshub/internal/httpserver"
	"progresshub/internal/membership"
	"progresshub/internal/mqhandler"
	"progresshub/internal/progress"
	"progresshub/internal/repository"
	"progresshub/internal/repository/firestore"
	"progresshub/internal/repository/memory"
	"progresshub/internal/service"
	"progresshub/pkg/config"
	"progresshub/pkg/db"
	"progresshub/pkg/logger"
	"progresshub/pkg/mq"
	pkgredis "progresshub/pkg/redis"

	"go.uber.org/zap"
)

const (
	recomputeQueue = "progress.recompute.q"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.GetConfigEnv(), os.Getenv("CONFIG_DIR"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting progresshub...",
		zap.String("env", config.GetConfigEnv()),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("blob_driver", cfg.Blob.Driver),
		zap.Bool("mq_enabled", cfg.MQ.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	// Store
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init store", zap.Error(err))
	}
	defer backend.Close()
	log.Info("Store initialized", zap.String("driver", cfg.Store.Driver))

	ready := []httpserver.ReadinessCheck{{Name: "store", Check: backend.Ping}}

	// Cache
	var (
		writes repository.ProjectStore = backend.Projects
		reads  repository.ProjectStore = backend.Projects
	)
	if cfg.Redis.Enabled {
		rdb := pkgredis.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		if err := pkgredis.Ping(ctx, rdb); err != nil {
			// the cache fails open, so an unreachable redis only costs latency
			log.Warn("Redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cached := cache.NewProjectCache(backend.Projects, rdb, cfg.Redis.TTL, log)
		reads = cached
		writes = cached.Consistent()
		log.Info("Project cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	// MQ publisher
	var publisher events.Publisher = events.NopPublisher{}
	var mqPublisher *mq.Publisher
	if cfg.MQ.Enabled {
		mqPublisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer mqPublisher.Close()
		publisher = events.NewMQPublisher(mqPublisher, nil, log)
		ready = append(ready, httpserver.ReadinessCheck{Name: "mq_publisher", Check: connected(mqPublisher.IsConnected)})
		log.Info("MQ publisher initialized")
	}

	// Blob
	images, assetDir, closeImages, err := openBlob(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init image storage", zap.Error(err))
	}
	defer closeImages()

	engine := progress.NewEngine(writes, backend.Tasks, backend.SubTasks, publisher, log)
	members := membership.NewMaintainer(writes, backend.Tasks, log)

	projectService := service.NewProjectService(writes, backend.Tasks, backend.SubTasks, images, blob.URLBuilder{Base: cfg.Server.AssetBaseURL}, log).
		WithReadCache(reads)
	taskService := service.NewTaskService(backend.Tasks, backend.SubTasks, writes, members, engine, log)
	subTaskService := service.NewSubTaskService(backend.SubTasks, backend.Tasks, writes, members, engine, log)

	// MQ consumer for progress.recompute.requested
	var consumer *mq.Consumer
	if cfg.MQ.Enabled {
		log.Info("Initializing MQ consumer for progress.recompute.requested...",
			zap.String("queue", recomputeQueue),
			zap.String("routing_key", mqcontracts.RoutingKeyRecomputeRequested),
		)
		consumer, err = mq.NewConsumer(cfg.MQ.URL, recomputeQueue, mqcontracts.RoutingKeyRecomputeRequested, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(mqhandler.NewRecomputeRequestedHandler(engine, log).Handle)
		consumer.SetDeadLetter(mqPublisher)
		ready = append(ready, httpserver.ReadinessCheck{Name: "mq_consumer", Check: connected(consumer.IsConnected)})

		go func() {
			log.Info("Starting progress.recompute.requested consumer...")
			if err := consumer.StartConsuming(ctx); err != nil {
				log.Error("Recompute consumer stopped", zap.Error(err))
			}
		}()
	}

	// HTTP Server
	router := httpserver.NewRouter(httpserver.Deps{
		Projects:     handler.NewProjectHandler(projectService, taskService, subTaskService, cfg.Server.MaxUploadBytes, log),
		Tasks:        handler.NewTaskHandler(taskService, subTaskService, log),
		SubTasks:     handler.NewSubTaskHandler(subTaskService, log),
		Members:      projectService,
		TaskLocator:  taskService,
		SubTaskOwner: subTaskService,
		JWTSecret:    cfg.JWT.Secret,
		AssetDir:     assetDir,
		Ready:        ready,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down progresshub gracefully...")

	if consumer != nil {
		log.Info("Stopping MQ consumer...")
		consumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("progresshub shutdown complete")
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Backend, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return repository.Backend{}, err
		}
		if err := repository.EnsureSchema(ctx, pool, log); err != nil {
			pool.Close()
			return repository.Backend{}, err
		}
		return repository.NewPostgresBackend(pool, log), nil
	case "firestore":
		fs, err := firestore.New(ctx, cfg.Store.Firestore, log)
		if err != nil {
			return repository.Backend{}, err
		}
		return fs.Backend(), nil
	default:
		log.Warn("Using in-memory store, data is lost on restart")
		return memory.New().Backend(), nil
	}
}

// openBlob returns the image store, the directory to serve under /assets
// (empty for remote stores) and a close func.
func openBlob(ctx context.Context, cfg *config.Config, log *zap.Logger) (blob.Store, string, func(), error) {
	if cfg.Blob.Driver == "gcs" {
		g, err := blob.NewGCS(ctx, cfg.Blob.Bucket, cfg.Blob.CredentialsFile, log)
		if err != nil {
			return nil, "", nil, err
		}
		return g, "", func() { _ = g.Close() }, nil
	}
	l, err := blob.NewLocal(cfg.Blob.Dir, log)
	if err != nil {
		return nil, "", nil, err
	}
	return l, l.Dir(), func() {}, nil
}

func connected(isConnected func() bool) func(context.Context) error {
	return func(context.Context) error {
		if !isConnected() {
			return errors.New("not connected")
		}
		return nil
	}
}

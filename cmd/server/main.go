package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-reconstructor/api/handlers"
	"github.com/feichai0017/document-reconstructor/api/routes"
	"github.com/feichai0017/document-reconstructor/config"
	"github.com/feichai0017/document-reconstructor/internal/agent"
	"github.com/feichai0017/document-reconstructor/internal/agent/document/tesseract"
	"github.com/feichai0017/document-reconstructor/internal/service/document"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/queue"
	"github.com/feichai0017/document-reconstructor/pkg/worker"
)

func main() {
	cfg := config.Get()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Logger.Level),
		logger.WithEncoding(cfg.Logger.Encoding),
		logger.WithOutputPaths(cfg.Logger.OutputPaths),
		logger.WithErrorPaths(cfg.Logger.ErrorPaths),
		logger.WithFileRotation(cfg.Logger.MaxSizeMB, cfg.Logger.MaxBackups, cfg.Logger.MaxAgeDays),
		logger.WithInitialFields(map[string]interface{}{"service": "server"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OCR engines
	factory, gemini := agent.NewDefaultFactory(ctx, cfg, log.Named("agent"))
	defer gemini.Close()
	if cfg.Tesseract.Enabled {
		factory.Register(agent.EngineTesseract, tesseract.NewEngine(cfg.Tesseract.Languages, log.Named("tesseract")))
	}

	store := document.NewFileStore(cfg.Storage.DataDir, log.Named("store"))
	if err := os.MkdirAll(store.Root(), 0o755); err != nil {
		log.Fatal("Failed to create data directory", logger.Error(err))
	}

	// background processing
	var (
		dispatcher document.Dispatcher
		tasks      handlers.TaskStatusReader
		pool       *worker.Pool
	)
	switch cfg.Processing.Dispatcher {
	case config.DispatcherQueue:
		q := queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:     cfg.Redis.Addr,
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Queue:         cfg.Queue.Name,
			MaxRetry:      cfg.Queue.MaxRetry,
			Timeout:       cfg.Queue.Timeout,
		}, log.Named("queue"))
		defer q.Close()
		dispatcher, tasks = q, q
		log.Info("Processing runs on the queue worker", logger.String("queue", cfg.Queue.Name))
	default:
		engine := document.NewEngine(store, factory, document.NewMemoryRegistry(),
			document.EngineConfigFrom(cfg.Processing), log.Named("engine"))

		archiver, err := document.NewArchiverFromConfig(ctx, cfg, log)
		if err != nil {
			log.Fatal("Failed to init archive", logger.Error(err))
		}
		if archiver != nil {
			engine.SetArchiver(archiver)
			go archiver.RunCleanup(ctx, time.Hour)
		}

		pool = worker.NewPool(cfg.Processing.PoolSize, engine.Process, log.Named("pool"))
		dispatcher = pool
	}

	docService := document.NewService(
		store,
		factory,
		gemini,
		dispatcher,
		document.ValidatorFrom(cfg.Storage, log),
		log.Named("document"),
	)

	// init handlers
	gin.SetMode(cfg.Server.Mode)
	h := handlers.NewHandlers(docService, tasks, log.Named("api"))
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, routes.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
		FilesDir:     store.Root(),
	}, log.Named("http"))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Warn("Background runs interrupted", logger.Error(err))
		}
	}
	log.Info("Server stopped")
}


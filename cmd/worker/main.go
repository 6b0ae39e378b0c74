package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/internal/agent"
    "github.com/feichai0017/document-reconstructor/internal/agent/document/tesseract"
    "github.com/feichai0017/document-reconstructor/internal/service/document"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
    "github.com/feichai0017/document-reconstructor/pkg/worker"
)

func main() {
    cfg := config.Get()

    // 初始化日志
    log, err := logger.NewLogger(
        logger.WithLevel(cfg.Logger.Level),
        logger.WithEncoding(cfg.Logger.Encoding),
        logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
        logger.WithErrorPaths(cfg.Logger.ErrorPaths),
        logger.WithFileRotation(cfg.Logger.MaxSizeMB, cfg.Logger.MaxBackups, cfg.Logger.MaxAgeDays),
        logger.WithInitialFields(map[string]interface{}{"service": "worker"}),
    )
    if err != nil {
        panic(err)
    }
    defer log.Sync()

    // 创建上下文和取消函数
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    factory, gemini := agent.NewDefaultFactory(ctx, cfg, log.Named("agent"))
    defer gemini.Close()
    if cfg.Tesseract.Enabled {
        factory.Register(agent.EngineTesseract, tesseract.NewEngine(cfg.Tesseract.Languages, log.Named("tesseract")))
    }

    // 多个 worker 进程通过 Redis 共享文档锁
    rdb := redis.NewClient(&redis.Options{
        Addr:     cfg.Redis.Addr,
        Password: cfg.Redis.Password,
        DB:       cfg.Redis.DB,
    })
    defer rdb.Close()
    pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
    if err := rdb.Ping(pingCtx).Err(); err != nil {
        pingCancel()
        log.Error("Failed to connect to redis", logger.Error(err), logger.String("addr", cfg.Redis.Addr))
        os.Exit(1)
    }
    pingCancel()

    store := document.NewFileStore(cfg.Storage.DataDir, log.Named("store"))
    engine := document.NewEngine(
        store,
        factory,
        document.NewRedisRegistry(rdb, cfg.Processing.LockTTL),
        document.EngineConfigFrom(cfg.Processing),
        log.Named("engine"),
    )

    archiver, err := document.NewArchiverFromConfig(ctx, cfg, log)
    if err != nil {
        log.Error("Failed to init archive", logger.Error(err))
        os.Exit(1)
    }
    if archiver != nil {
        engine.SetArchiver(archiver)
        go archiver.RunCleanup(ctx, time.Hour)
    }

    // 创建 worker 配置
    workerCfg := &worker.Config{
        RedisAddr:     cfg.Redis.Addr,
        RedisPassword: cfg.Redis.Password,
        RedisDB:       cfg.Redis.DB,
        Concurrency:   cfg.Queue.Concurrency,
        Queues:        map[string]int{cfg.Queue.Name: 1},
    }

    // 创建 worker
    documentWorker, err := worker.NewDocumentWorker(workerCfg, engine, log.Named("worker"))
    if err != nil {
        log.Error("Failed to create document worker", logger.Error(err))
        os.Exit(1)
    }

    // 启动 worker
    if err := documentWorker.Start(ctx); err != nil {
        log.Error("Failed to start worker", logger.Error(err))
        os.Exit(1)
    }

    // 等待中断信号
    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
    <-sigChan

    // 优雅关闭
    log.Info("Shutting down worker...")
    documentWorker.Stop()
    log.Info("Worker stopped")
}

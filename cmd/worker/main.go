package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/book-reader/config"
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
	"github.com/feichai0017/book-reader/pkg/queue"
	"github.com/feichai0017/book-reader/pkg/worker"
)

func main() {
	cfg := config.GetReaderConfig()

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 创建书籍服务
	bookService, err := book.GetService(cfg, log)
	if err != nil {
		log.Error("Failed to create book service", logger.Error(err))
		os.Exit(1)
	}

	// 创建 worker 配置
	workerCfg := &worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
		Queues:        queue.DefaultQueues,
	}

	// 创建 worker
	coverWorker, err := worker.NewCoverWorker(workerCfg, bookService, log.Named("worker"))
	if err != nil {
		log.Error("Failed to create cover worker", logger.Error(err))
		os.Exit(1)
	}

	// 创建上下文和取消函数
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := coverWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	coverWorker.Stop()
	log.Info("Worker stopped")
}

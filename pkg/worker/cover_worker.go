package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
	"github.com/feichai0017/book-reader/pkg/queue"
)

// CoverHandler runs one cover extraction task.
type CoverHandler interface {
	HandleCoverTask(ctx context.Context, task *queue.Task) error
}

var _ Worker = (*CoverWorker)(nil)

type CoverWorker struct {
	BaseWorker
	handler CoverHandler
}

func NewCoverWorker(cfg *Config, handler CoverHandler, log logger.Logger) (*CoverWorker, error) {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.DefaultQueues
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
			Logger: &asynqLogger{logger: log.Named("asynq")},
		},
	)

	w := &CoverWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler: handler,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeCoverExtract, w.handleCoverExtract)
	return w, nil
}

func (w *CoverWorker) handleCoverExtract(ctx context.Context, t *asynq.Task) error {
	// 反序列化任务
	task, err := queue.DecodeTask(t.Payload())
	if err != nil {
		w.logger.Error("Invalid cover task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// 格式错误的任务重试也不会成功
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing cover task",
		logger.String("taskId", task.ID),
		logger.String("bookId", task.BookID),
	)

	err = w.handler.HandleCoverTask(ctx, task)
	// 文件损坏或书籍已删除, 重试没有意义
	if err != nil && (document.IsReadFailure(err) || errors.Is(err, book.ErrBookNotFound)) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *CoverWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

// asynqLogger adapts the logger to asynq's printf-style interface.
type asynqLogger struct {
	logger logger.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal(fmt.Sprint(args...)) }

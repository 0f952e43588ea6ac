package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/book-reader/internal/models"
)

// TaskType 定义任务类型
const (
	TaskTypeCoverExtract = "cover:extract"
)

// 队列名称与权重
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var queueNames = []string{QueueCritical, QueueDefault, QueueLow}

// DefaultQueues is the weighted queue set used by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

var ErrTaskNotFound = errors.New("task not found")

const statusTTL = 24 * time.Hour

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*models.CoverTask, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveStatus(ctx context.Context, status *models.CoverTask) error
}

// Task 定义任务结构
type Task struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Priority  int       `json:"priority"`
	BookID    string    `json:"bookId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCoverTask builds a cover extraction task for bookID.
func NewCoverTask(id, bookID string) *Task {
	return &Task{
		ID:        id,
		Type:      TaskTypeCoverExtract,
		Priority:  2,
		BookID:    bookID,
		CreatedAt: time.Now(),
	}
}

// DecodeTask parses an asynq payload produced by Enqueue.
func DecodeTask(payload []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if task.ID == "" || task.BookID == "" {
		return nil, fmt.Errorf("invalid task data: missing required fields")
	}
	return &task, nil
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	cfg       *QueueConfig
}

// QueueConfig 定义队列配置
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
}

func (c *QueueConfig) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg *QueueConfig) (*AsynqQueue, error) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ProcessTimeout == 0 {
		cfg.ProcessTimeout = 5 * time.Minute
	}

	redisOpt := cfg.RedisOpt()

	// 创建 Redis 客户端
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		cfg:       cfg,
	}, nil
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	// 序列化整个任务
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// 设置任务选项
	opts := []asynq.Option{
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.ProcessTimeout),
		asynq.Queue(queueFor(task.Priority)),
	}
	if task.ID != "" {
		opts = append(opts, asynq.TaskID(task.ID))
	}

	// 创建并入队任务
	t := asynq.NewTask(task.Type, payload, opts...)
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 记录任务ID
	task.ID = info.ID

	return nil
}

// 根据优先选择队列
func queueFor(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("cover_status:%s", taskID)
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*models.CoverTask, error) {
	// 首先尝试从 Redis 获取状态
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	if err == nil {
		var status models.CoverTask
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	// 如果 Redis 中没有，从所有队列中查找
	for _, queueName := range queueNames {
		info, err := q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			return convertAsynqStatus(info), nil
		}
	}

	return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
}

// CancelTask 取消任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	var lastErr error
	for _, queueName := range queueNames {
		err := q.inspector.DeleteTask(queueName, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveStatus 保存任务状态, 24 小时后过期
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *models.CoverTask) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := q.redis.Set(ctx, statusKey(status.ID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}

	return nil
}

func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redis.Close())
}

// convertAsynqStatus 将 asynq 状态转换为 CoverTask
func convertAsynqStatus(info *asynq.TaskInfo) *models.CoverTask {
	status := &models.CoverTask{
		ID:     info.ID,
		Status: models.CoverPending,
	}
	if task, err := DecodeTask(info.Payload); err == nil {
		status.BookID = task.BookID
		status.CreatedAt = task.CreatedAt
	}

	switch info.State {
	case asynq.TaskStateActive:
		status.Status = models.CoverRunning
	case asynq.TaskStateCompleted:
		status.Status = models.CoverCompleted
		status.UpdatedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = models.CoverFailed
		status.Error = info.LastErr
		status.UpdatedAt = info.LastFailedAt
	}

	return status
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/async-resource/internal/config"
)

const defaultExpireMinutes = 60

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	DeleteTask(queue, id string) error
	CancelProcessing(id string) error
	Close() error
}

// Manager はジョブの投入・状態参照・取り消しを担います。
type Manager struct {
	client    enqueuer
	inspector taskInspector
	server    *asynq.Server
	mux       *asynq.ServeMux
	store     *Store
	rdb       *redis.Client // Open で作成した場合のみ
	queue     string
	logger    *slog.Logger
	newID     func() string
}

// Open は QueueRedisURL に接続し、Store と Manager をまとめて作成します。
func Open(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = defaultExpireMinutes
	}
	store := NewStore(rdb, time.Duration(ttlMinutes)*time.Minute)

	m, err := NewManager(cfg, store, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	m.rdb = rdb
	return m, nil
}

// Ping は Redis への接続を確認します。
func (m *Manager) Ping(ctx context.Context) error {
	if m.rdb == nil {
		return nil
	}
	return m.rdb.Ping(ctx).Err()
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store *Store, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			cfg.QueueName: 1,
		},
	})

	m := newManager(asynq.NewClient(opt), asynq.NewInspector(opt), store, cfg.QueueName, logger)
	m.server = server
	return m, nil
}

func newManager(client enqueuer, inspector taskInspector, store *Store, queue string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == "" {
		queue = "default"
	}
	return &Manager{
		client:    client,
		inspector: inspector,
		mux:       asynq.NewServeMux(),
		store:     store,
		queue:     queue,
		logger:    logger,
		newID:     func() string { return uuid.New().String() },
	}
}

// RunWorkers は ctx がキャンセルされるまで Asynq サーバーを動かします。
func (m *Manager) RunWorkers(ctx context.Context) error {
	if m.server == nil {
		return errors.New("worker server is not configured")
	}
	if err := m.server.Start(m.mux); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	m.logger.Info("workers started", "queue", m.queue)
	<-ctx.Done()
	m.server.Shutdown()
	m.logger.Info("workers stopped", "queue", m.queue)
	return nil
}

// Shutdown はクライアントとインスペクタ、Open で作成した Redis 接続を閉じます。
func (m *Manager) Shutdown() error {
	errs := []error{m.client.Close(), m.inspector.Close()}
	if m.rdb != nil {
		errs = append(errs, m.rdb.Close())
	}
	return errors.Join(errs...)
}

// Enqueue はジョブを PENDING で登録してからキューに投入し、Handle を返します。
func (m *Manager) Enqueue(ctx context.Context, taskType string, payload any) (*Handle, error) {
	if taskType == "" {
		return nil, fmt.Errorf("taskType is required")
	}
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	jobID := m.newID()
	if _, err := m.store.Create(ctx, jobID, taskType); err != nil {
		return nil, err
	}

	task := asynq.NewTask(taskType, body)
	if _, err := m.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(m.queue),
		asynq.MaxRetry(0),
	); err != nil {
		if cleanupErr := m.store.Delete(ctx, jobID); cleanupErr != nil {
			err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
		}
		return nil, fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	m.logger.Debug("job enqueued", "job_id", jobID, "task_type", taskType)
	return NewHandle(m, jobID), nil
}

// Handle は既存ジョブ ID の Handle を返します。存在確認は行いません。
func (m *Manager) Handle(jobID string) *Handle {
	return NewHandle(m, jobID)
}

// Lookup はジョブ情報を取得します。
func (m *Manager) Lookup(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

// Revoke はレコードを REVOKED にしたうえで、キュー上のタスクを削除します。
// 削除できない（実行中）場合、terminate なら実行中タスクへキャンセルを送ります。
// キュー側の操作は補助的なもので、失敗してもワーカーが状態を見て結果を破棄します。
func (m *Manager) Revoke(ctx context.Context, jobID string, terminate bool) error {
	if _, err := m.store.Revoke(ctx, jobID); err != nil {
		return err
	}

	deleteErr := m.inspector.DeleteTask(m.queue, jobID)
	if deleteErr == nil || errors.Is(deleteErr, asynq.ErrTaskNotFound) {
		m.logger.Info("job revoked", "job_id", jobID)
		return nil
	}
	if !terminate {
		m.logger.Warn("revoked job could not be removed from queue", "job_id", jobID, "error", deleteErr)
		return nil
	}
	if err := m.inspector.CancelProcessing(jobID); err != nil {
		m.logger.Warn("failed to cancel running job", "job_id", jobID, "error", err)
		return nil
	}
	m.logger.Info("job revoked and terminated", "job_id", jobID)
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		return body, nil
	}
}

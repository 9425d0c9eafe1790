// Package jobs は非同期ジョブの投入・状態管理・取り消しを提供します。
//
// 状態は Redis 上のレコードに保存され、状態機械（PENDING → STARTED →
// SUCCESS/FAILURE、非終端 → REVOKED）に反する更新は拒否されます。
// キューには Asynq を使い、タスク ID にジョブ ID をそのまま使います。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TaskFunc はワーカーで実行されるタスク本体です。
type TaskFunc func(ctx context.Context, payload []byte) (*Output, error)

// Register は taskType に対応するタスクを登録します。
func (m *Manager) Register(taskType string, fn TaskFunc) {
	m.mux.HandleFunc(taskType, m.wrap(taskType, fn))
}

func (m *Manager) wrap(taskType string, fn TaskFunc) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		jobID, ok := asynq.GetTaskID(ctx)
		if !ok {
			return fmt.Errorf("missing task id: %w", asynq.SkipRetry)
		}
		return m.runTask(ctx, jobID, taskType, task.Payload(), fn)
	}
}

func (m *Manager) runTask(ctx context.Context, jobID, taskType string, payload []byte, fn TaskFunc) error {
	logger := m.logger.With("job_id", jobID, "task_type", taskType)

	if _, err := m.store.Transition(ctx, jobID, StateStarted, nil); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			logger.Info("skipping job", "reason", err.Error())
			return nil
		}
		return err
	}

	output, runErr := safeRun(ctx, payload, fn)
	// キャンセル後も結果の記録はできるようにする
	storeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		_, err := m.store.Transition(storeCtx, jobID, StateFailure, func(r *Record) {
			r.Error = runErr.Error()
		})
		if err != nil {
			return m.discard(logger, err)
		}
		logger.Warn("job failed", "error", runErr)
		return fmt.Errorf("%v: %w", runErr, asynq.SkipRetry)
	}

	if _, err := m.store.Transition(storeCtx, jobID, StateSuccess, func(r *Record) {
		r.Output = output
	}); err != nil {
		return m.discard(logger, err)
	}
	logger.Info("job succeeded")
	return nil
}

// discard は取り消し等で結果を保存できなかった場合の後始末です。
func (m *Manager) discard(logger *slog.Logger, err error) error {
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
		logger.Info("discarding job outcome", "reason", err.Error())
		return nil
	}
	return err
}

func safeRun(ctx context.Context, payload []byte, fn TaskFunc) (output *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, payload)
}

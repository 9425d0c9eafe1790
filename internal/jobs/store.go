package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "asyncjob:"

	maxTransitionAttempts = 16
)

var (
	// ErrNotFound はレコードが存在しない（または期限切れ）ことを表します。
	ErrNotFound = errors.New("jobs: record not found")
	// ErrInvalidTransition は状態機械が許可しない遷移を表します。
	ErrInvalidTransition = errors.New("jobs: invalid state transition")
	// ErrNotReady は終端状態に達していないジョブの結果を要求したことを表します。
	ErrNotReady = errors.New("jobs: job is not ready")
	// ErrRevoked は取り消されたジョブの結果を要求したことを表します。
	ErrRevoked = errors.New("revoked")
)

// Store はジョブ状態を Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get はジョブ情報を取得します。存在しない場合は nil, nil を返します。
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord(data)
}

// Create は PENDING のレコードを新規作成します。既に存在する場合はエラーです。
func (s *Store) Create(ctx context.Context, jobID, taskType string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	now := s.now()
	record := &Record{
		JobID:     jobID,
		TaskType:  taskType,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.ttl > 0 {
		record.ExpiresAt = now.Add(s.ttl)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(jobID), payload, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("job already exists: %s", jobID)
	}
	return record, nil
}

// Delete はレコードを削除します。
func (s *Store) Delete(ctx context.Context, jobID string) error {
	return s.rdb.Del(ctx, jobKey(jobID)).Err()
}

// Transition はレコードを to へ遷移させ、mutate で付随情報を更新します。
// 許可されない遷移は ErrInvalidTransition、レコードが無い場合は ErrNotFound を返します。
func (s *Store) Transition(ctx context.Context, jobID string, to State, mutate func(*Record)) (*Record, error) {
	return s.update(ctx, jobID, func(record *Record) error {
		if record == nil {
			return ErrNotFound
		}
		if !record.State.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.State, to)
		}
		s.stamp(record, to)
		if mutate != nil {
			mutate(record)
		}
		return nil
	})
}

// Revoke はレコードを REVOKED にします。
// レコードが存在しない場合は REVOKED の墓標を作成し、後から届いたタスクも実行されないようにします。
func (s *Store) Revoke(ctx context.Context, jobID string) (*Record, error) {
	return s.update(ctx, jobID, func(record *Record) error {
		if record.JobID == "" {
			now := s.now()
			record.JobID = jobID
			record.State = StatePending
			record.CreatedAt = now
			if s.ttl > 0 {
				record.ExpiresAt = now.Add(s.ttl)
			}
		}
		if !record.State.CanTransition(StateRevoked) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.State, StateRevoked)
		}
		s.stamp(record, StateRevoked)
		return nil
	}, allowMissing())
}

func (s *Store) stamp(record *Record, to State) {
	now := s.now()
	record.State = to
	switch {
	case to == StateStarted:
		record.StartedAt = now
	case to.Ready():
		record.FinishedAt = now
	}
}

type updateOptions struct {
	allowMissing bool
}

type updateOption func(*updateOptions)

func allowMissing() updateOption {
	return func(o *updateOptions) { o.allowMissing = true }
}

// update は WATCH/MULTI による楽観ロックで read-modify-write を行います。
func (s *Store) update(ctx context.Context, jobID string, mutate func(*Record) error, opts ...updateOption) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := jobKey(jobID)
	var result *Record
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		record := &Record{}
		switch {
		case errors.Is(err, redis.Nil):
			if !o.allowMissing {
				return mutate(nil)
			}
		case err != nil:
			return err
		default:
			if record, err = decodeRecord(data); err != nil {
				return err
			}
		}

		if err := mutate(record); err != nil {
			return err
		}
		record.UpdatedAt = s.now()
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}

		ttl := s.ttl
		if !record.ExpiresAt.IsZero() {
			if remaining := record.ExpiresAt.Sub(s.now()); remaining > 0 {
				ttl = remaining
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err == nil {
			result = record
		}
		return err
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("job %s: too many concurrent updates", jobID)
}

func decodeRecord(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode job record: %w", err)
	}
	return &record, nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

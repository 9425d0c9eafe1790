package jobs

import (
	"context"
	"encoding/json"
)

// Backend はジョブキュー側の状態参照と取り消しを提供します。
type Backend interface {
	// Lookup はレコードを返します。未知の ID では nil, nil を返します。
	Lookup(ctx context.Context, jobID string) (*Record, error)
	// Revoke は終端状態でないジョブを取り消します。
	Revoke(ctx context.Context, jobID string, terminate bool) error
}

// Handle はジョブ ID とその問い合わせ操作をまとめたものです。
// 状態はキャッシュせず、呼び出しのたびに Backend を参照します。
type Handle struct {
	id      string
	backend Backend
}

// NewHandle は Handle を作成します。
func NewHandle(backend Backend, jobID string) *Handle {
	return &Handle{id: jobID, backend: backend}
}

// ID はジョブ ID を返します。
func (h *Handle) ID() string {
	return h.id
}

// State は現在の状態を返します。未知の ID は PENDING として扱います。
func (h *Handle) State(ctx context.Context) (State, error) {
	record, err := h.backend.Lookup(ctx, h.id)
	if err != nil {
		return "", err
	}
	if record == nil {
		return StatePending, nil
	}
	return record.State, nil
}

// Ready は終端状態に達しているかを返します。
func (h *Handle) Ready(ctx context.Context) (bool, error) {
	state, err := h.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Ready(), nil
}

// Get は成果物を返します。
// FAILURE なら *TaskError、REVOKED なら ErrRevoked、未完了なら ErrNotReady を返します。
func (h *Handle) Get(ctx context.Context) (*Output, error) {
	record, err := h.backend.Lookup(ctx, h.id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotReady
	}
	switch record.State {
	case StateSuccess:
		if record.Output == nil {
			return &Output{Kind: OutputValue, Value: json.RawMessage("null")}, nil
		}
		return record.Output, nil
	case StateFailure:
		return nil, &TaskError{Message: record.Error}
	case StateRevoked:
		return nil, ErrRevoked
	default:
		return nil, ErrNotReady
	}
}

// Revoke はジョブの取り消しを要求します。terminate が true なら実行中のタスクもキャンセルします。
func (h *Handle) Revoke(ctx context.Context, terminate bool) error {
	return h.backend.Revoke(ctx, h.id, terminate)
}

// Enqueuer はフックからジョブを投入する側のインターフェースです。Manager が実装します。
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (*Handle, error)
}

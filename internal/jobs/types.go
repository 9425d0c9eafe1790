package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// State はジョブの実行状態を表します。値はワイヤ上にそのまま現れます。
type State string

const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
	StateRevoked State = "REVOKED"
)

// Ready は終端状態（SUCCESS, FAILURE, REVOKED）かどうかを返します。
func (s State) Ready() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	default:
		return false
	}
}

// CanTransition は s から to への遷移が許可されているかを返します。
// 終端状態からはどこへも遷移できません。
func (s State) CanTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateStarted || to.Ready()
	case StateStarted:
		return to.Ready()
	default:
		return false
	}
}

// OutputKind はタスク成果物の種別を表します。
type OutputKind string

const (
	// OutputValue は JSON 値（オブジェクト・配列・スカラー）です。
	OutputValue OutputKind = "value"
	// OutputRaw はコンテンツタイプ付きのバイト列で、そのまま返却されます。
	OutputRaw OutputKind = "raw"
	// OutputResponse は組み立て済みの HTTP レスポンスです。
	OutputResponse OutputKind = "response"
)

// Output はタスクが結果エンドポイント向けに保存する成果物です。
type Output struct {
	Kind        OutputKind          `json:"kind"`
	Value       json.RawMessage     `json:"value,omitempty"`
	ContentType string              `json:"contentType,omitempty"`
	Status      int                 `json:"status,omitempty"`
	Header      map[string][]string `json:"header,omitempty"`
	Body        []byte              `json:"body,omitempty"`
}

// ValueOutput は v を JSON として保存する Output を作成します。
func ValueOutput(v any) (*Output, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task value: %w", err)
	}
	return &Output{Kind: OutputValue, Value: data}, nil
}

// RawOutput はバイト列をそのまま返す Output を作成します。
func RawOutput(contentType string, body []byte) *Output {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Output{Kind: OutputRaw, ContentType: contentType, Body: body}
}

// ResponseOutput は組み立て済みレスポンスを返す Output を作成します。
func ResponseOutput(status int, header http.Header, body []byte) *Output {
	if status == 0 {
		status = http.StatusOK
	}
	return &Output{Kind: OutputResponse, Status: status, Header: header, Body: body}
}

// Record はジョブの現在状態を表します。
type Record struct {
	JobID      string    `json:"jobId"`
	TaskType   string    `json:"taskType"`
	State      State     `json:"state"`
	Output     *Output   `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// TaskError はタスク自身が失敗したことを表します。Error() はメッセージをそのまま返します。
type TaskError struct {
	Message string
}

func (e *TaskError) Error() string {
	return e.Message
}

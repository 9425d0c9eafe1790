// Package double は数値を2倍にするだけの非同期リソースです。
// フックからジョブを投入し、ワーカーで少し待ってから結果を返します。
package double

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/resource"
)

// TaskType は double タスクの種別名です。
const TaskType = "double:compute"

const maxBodyBytes = 1 << 16

// 2倍しても int64 に収まる範囲
const (
	maxNumber = math.MaxInt64 / 2
	minNumber = math.MinInt64 / 2
)

// Payload はキューに載せる入力です。
type Payload struct {
	Number int64 `json:"number"`
}

// Resource は POST /api/<api>/double/ でジョブを投入します。
type Resource struct {
	async.Unimplemented
	meta     resource.Meta
	enqueuer jobs.Enqueuer
}

// New は Resource を作成します。
func New(enqueuer jobs.Enqueuer) *Resource {
	return &Resource{
		meta: resource.Meta{
			ResourceName: "double",
			Description:  "number を2倍にした値を非同期で計算します。",
			Fields: []resource.Field{
				{Name: "result", Type: resource.FieldInteger, Help: "number * 2"},
			},
		},
		enqueuer: enqueuer,
	}
}

func (r *Resource) Meta() *resource.Meta {
	return &r.meta
}

// PostList は number を読み取ってジョブを投入します。
// number が無い、整数でない、または2倍すると int64 を超える場合は投入しません。
func (r *Resource) PostList(ctx context.Context, req *async.Request) (async.Outcome, error) {
	number, ok := readNumber(req.Request)
	if !ok || !inRange(number) {
		return async.Rejected(), nil
	}
	handle, err := r.enqueuer.Enqueue(ctx, TaskType, Payload{Number: number})
	if err != nil {
		return async.Outcome{}, fmt.Errorf("failed to enqueue double: %w", err)
	}
	return async.Enqueued(handle), nil
}

func readNumber(r *http.Request) (int64, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Number json.Number `json:"number"`
		}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil || body.Number == "" {
			return 0, false
		}
		n, err := body.Number.Int64()
		return n, err == nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	raw := strings.TrimSpace(r.PostFormValue("number"))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	return n, err == nil
}

func inRange(n int64) bool {
	return n >= minNumber && n <= maxNumber
}

// Task はワーカー側の処理です。delay だけ待ってから number*2 を返します。
func Task(delay time.Duration) jobs.TaskFunc {
	return func(ctx context.Context, payload []byte) (*jobs.Output, error) {
		var in Payload
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("invalid double payload: %w", err)
		}
		if !inRange(in.Number) {
			return nil, fmt.Errorf("number %d is out of range", in.Number)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		return jobs.ValueOutput(map[string]int64{"result": in.Number * 2})
	}
}

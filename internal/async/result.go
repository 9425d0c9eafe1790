package async

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/logger"
	"github.com/yourusername/async-resource/internal/resource"
)

// handleResult はジョブ結果エンドポイントです。
//
// 終端状態でないジョブは 404 です。失敗・取り消しされたジョブは 200 と {"error": メッセージ} を返します。
// 成功したジョブの値は、配列なら一覧として、それ以外は詳細として整形されます。
// raw と response の成果物はそのまま返します。GET 以外のメソッドは 403 です。
func (b *Binding) handleResult(c *gin.Context) {
	jobID := c.Param(paramJobID)
	if !validJobID(jobID) {
		notFound(c)
		return
	}
	if c.Request.Method != http.MethodGet {
		forbidden(c)
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, b.logger).With("job_id", jobID)

	output, err := jobs.NewHandle(b.backend, jobID).Get(ctx)
	if err != nil {
		var taskErr *jobs.TaskError
		switch {
		case errors.Is(err, jobs.ErrNotReady):
			notFound(c)
		case errors.As(err, &taskErr), errors.Is(err, jobs.ErrRevoked):
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		default:
			log.Error("failed to read job result", "error", err)
			resource.RespondWithError(c, err)
		}
		return
	}

	switch output.Kind {
	case jobs.OutputResponse:
		writePassthrough(c, output.Status, output.Header, output.Body)
	case jobs.OutputRaw:
		c.Data(http.StatusOK, output.ContentType, output.Body)
	default:
		body, err := b.renderValue(c.Request, jobID, output.Value)
		if err != nil {
			log.Warn("failed to render job result", "error", err)
			resource.RespondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func (b *Binding) renderValue(r *http.Request, jobID string, raw json.RawMessage) (any, error) {
	var value any
	if len(raw) > 0 {
		// 2^53 を超える整数を保つため数値は json.Number のまま扱う
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
	}
	if objects, ok := value.([]any); ok {
		return b.serializer.List(r, objects, b.ResultURI(jobID))
	}
	return b.serializer.Detail(r, value)
}

package async

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/logger"
	"github.com/yourusername/async-resource/internal/resource"
)

// StatusRepresentation は状態エンドポイントのレスポンスです。
// ResultURI は終端状態のときだけ含まれます。
type StatusRepresentation struct {
	State       jobs.State `json:"state"`
	ID          string     `json:"id"`
	ResourceURI string     `json:"resource_uri"`
	ResultURI   string     `json:"result_uri,omitempty"`
}

// handleState はジョブ状態エンドポイントです。
//
// GET は状態を返し、完了していれば result_uri も含めます。
// DELETE は未完了のジョブを強制終了付きで取り消し、成功すれば 410 を返します。
// 完了済み、または取り消しに失敗した場合は 400 です。その他のメソッドは 403 です。
//
// DELETE の確認と取り消しの間にジョブが完了することがあり、その場合は 400 と 410 の
// どちらも起こり得ます。
func (b *Binding) handleState(c *gin.Context) {
	jobID := c.Param(paramJobID)
	if !validJobID(jobID) {
		notFound(c)
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, b.logger).With("job_id", jobID)
	handle := jobs.NewHandle(b.backend, jobID)

	switch c.Request.Method {
	case http.MethodGet:
		state, err := handle.State(ctx)
		if err != nil {
			log.Error("failed to read job state", "error", err)
			resource.RespondWithError(c, err)
			return
		}
		// 状態と result_uri は同じ読み取り結果から決める
		rep := StatusRepresentation{
			State:       state,
			ID:          jobID,
			ResourceURI: b.StateURI(jobID),
		}
		if state.Ready() {
			rep.ResultURI = b.ResultURI(jobID)
		}
		c.JSON(http.StatusOK, rep)

	case http.MethodDelete:
		state, err := handle.State(ctx)
		if err != nil {
			log.Error("failed to read job state", "error", err)
			resource.RespondWithError(c, err)
			return
		}
		if state.Ready() {
			resource.JSONError(c, http.StatusBadRequest, "BAD_REQUEST", "ジョブは既に完了しているため取り消せません。")
			return
		}
		if err := handle.Revoke(ctx, true); err != nil {
			log.Warn("failed to revoke job", "error", err)
			resource.JSONError(c, http.StatusBadRequest, "BAD_REQUEST", "ジョブを取り消せませんでした。")
			return
		}
		resource.JSONError(c, http.StatusGone, "JOB_REVOKED", "ジョブを取り消しました。")

	default:
		forbidden(c)
	}
}

func forbidden(c *gin.Context) {
	resource.JSONError(c, http.StatusForbidden, "FORBIDDEN", "このメソッドは使用できません。")
}

func notFound(c *gin.Context) {
	resource.JSONError(c, http.StatusNotFound, "JOB_NOT_FOUND", "指定されたジョブの結果はありません。")
}

package async

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/logger"
	"github.com/yourusername/async-resource/internal/resource"
)

// dispatch はスコープ内の操作をメソッドで選び、対応するフックを呼び出します。
func (b *Binding) dispatch(scope Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		op := Operation{Verb: Verb(c.Request.Method), Scope: scope}
		b.invoke(c, op)
	}
}

func (b *Binding) invoke(c *gin.Context, op Operation) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, b.logger).With("operation", op.String())

	req := &Request{Request: c.Request, Kwargs: kwargsFrom(c)}
	outcome, err := op.invoke(b.res, ctx, req)
	if err != nil {
		log.Error("async hook failed", "error", err)
		resource.RespondWithError(c, err)
		return
	}
	log.Debug("async hook returned", "outcome", outcome.kind.String())

	switch outcome.kind {
	case outcomeRejected:
		resource.JSONError(c, http.StatusBadRequest, "BAD_REQUEST",
			fmt.Sprintf("%s did not enqueue a job.", op))
	case outcomeEnqueued:
		jobID := outcome.handle.ID()
		location := b.StateURI(jobID)
		c.Header("Location", location)
		c.JSON(http.StatusAccepted, gin.H{
			"id":        jobID,
			"state_uri": location,
		})
		log.Info("job accepted", "job_id", jobID)
	case outcomeResponse:
		outcome.response.write(c)
	default:
		resource.JSONError(c, http.StatusNotImplemented, "NOT_IMPLEMENTED",
			fmt.Sprintf("%s is not implemented for %s.", op, b.meta.ResourceName))
	}
}

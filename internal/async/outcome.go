package async

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/jobs"
)

type outcomeKind uint8

const (
	outcomeNotImplemented outcomeKind = iota
	outcomeRejected
	outcomeEnqueued
	outcomeResponse
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeRejected:
		return "rejected"
	case outcomeEnqueued:
		return "enqueued"
	case outcomeResponse:
		return "response"
	default:
		return "not_implemented"
	}
}

// Outcome はフックの戻り値です。ゼロ値は NotImplemented と同じです。
type Outcome struct {
	kind     outcomeKind
	handle   *jobs.Handle
	response *Response
}

// NotImplemented はフックが未実装であることを表します（501）。
func NotImplemented() Outcome {
	return Outcome{kind: outcomeNotImplemented}
}

// Rejected はジョブを投入しなかったことを表します（400）。
func Rejected() Outcome {
	return Outcome{kind: outcomeRejected}
}

// Enqueued はジョブを投入したことを表します（202 + Location）。h が nil なら Rejected です。
func Enqueued(h *jobs.Handle) Outcome {
	if h == nil {
		return Rejected()
	}
	return Outcome{kind: outcomeEnqueued, handle: h}
}

// Respond は組み立て済みのレスポンスをそのまま返すことを表します。r が nil なら Rejected です。
func Respond(r *Response) Outcome {
	if r == nil {
		return Rejected()
	}
	return Outcome{kind: outcomeResponse, response: r}
}

// Response はフックやタスクがそのまま返すレスポンスです。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSONResponse は v を JSON 本文に持つ Response を作ります。
func JSONResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json; charset=utf-8")
	return &Response{Status: status, Header: header, Body: body}, nil
}

func (r *Response) write(c *gin.Context) {
	writePassthrough(c, r.Status, r.Header, r.Body)
}

func writePassthrough(c *gin.Context, status int, header map[string][]string, body []byte) {
	if status == 0 {
		status = http.StatusOK
	}
	h := c.Writer.Header()
	for k, values := range header {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	c.Status(status)
	if len(body) > 0 {
		_, _ = c.Writer.Write(body)
	}
}

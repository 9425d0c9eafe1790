package resource

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error はクライアントへそのまま返すエラーです。
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest は 400 の Error を作成します。
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: message}
}

// JSONError は {code, message} 形式のエラーレスポンスを書き込みます。
func JSONError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// RespondWithError はエラーを HTTP ステータスに変換して書き込みます。
func RespondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		JSONError(c, status, apiErr.Code, apiErr.Message)
	case errors.Is(err, context.Canceled):
		JSONError(c, http.StatusRequestTimeout, "REQUEST_CANCELED", "リクエストがキャンセルされました。")
	default:
		_ = c.Error(err)
		JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "サーバー内部でエラーが発生しました。")
	}
}

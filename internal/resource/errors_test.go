package resource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{BadRequest("bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{&Error{Status: http.StatusRequestEntityTooLarge, Code: "LIMIT_EXCEEDED", Message: "too big"}, http.StatusRequestEntityTooLarge, "LIMIT_EXCEEDED"},
		{&Error{Code: "X", Message: "no status"}, http.StatusBadRequest, "X"},
		{context.Canceled, http.StatusRequestTimeout, "REQUEST_CANCELED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondWithError(c, tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &Error{Message: "outer", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "outer: inner", err.Error())
}

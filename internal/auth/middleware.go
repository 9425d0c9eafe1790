package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireLogin はセッションを検証するミドルウェアです。
// 発行から一定時間、または最終操作から一定時間が経ったセッションは破棄します。
func (a *Authenticator) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		user, ok := session.Get(sessionKeyUser).(string)
		if !ok || user == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "ログインが必要です")
			return
		}

		now := a.now()
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		if issuedAt.IsZero() || now.Sub(issuedAt) > a.maxLifetime {
			session.Clear()
			_ = session.Save()
			abort(c, http.StatusUnauthorized, "SESSION_EXPIRED", "セッションの有効期限が切れました")
			return
		}
		if lastActive.IsZero() || now.Sub(lastActive) > a.idleTimeout {
			session.Clear()
			_ = session.Save()
			abort(c, http.StatusUnauthorized, "SESSION_IDLE_TIMEOUT", "しばらく操作がなかったため再ログインしてください")
			return
		}

		session.Set(sessionKeyLastActive, now.Unix())
		_ = session.Save()
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// VerifyCSRF は状態を変更するメソッドで X-CSRF-Token ヘッダーを検証するミドルウェアです。
// 状態エンドポイントへの DELETE（取り消し）もここで検証されます。
func (a *Authenticator) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			abort(c, http.StatusForbidden, "CSRF_MISSING", "CSRF トークンが設定されていません")
			return
		}
		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			abort(c, http.StatusForbidden, "CSRF_INVALID", "CSRF トークンが一致しません")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func readUnix(v any) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Package auth はセッションによるログインと CSRF 検証を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/logger"
	"github.com/yourusername/async-resource/internal/resource"
)

const (
	SessionCookieName    = "ar_session"
	sessionKeyUser       = "auth_user"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"

	// ContextUserKey はログイン済みユーザー名を gin.Context に載せるキーです。
	ContextUserKey = "auth.user"
)

const (
	defaultMaxSessionLifetime = 12 * time.Hour
	defaultIdleTimeout        = 30 * time.Minute
	defaultLoginWindow        = 15 * time.Minute
	defaultLockDuration       = 10 * time.Minute
	defaultMaxLoginAttempts   = 5
)

// Authenticator はログイン・ログアウトとセッション検証をまとめたものです。
type Authenticator struct {
	username     string
	passwordHash []byte
	secretSet    bool

	maxLifetime time.Duration
	idleTimeout time.Duration
	attempts    *attemptLimiter
	logger      *slog.Logger
	now         func() time.Time
}

// New は Authenticator を作成します。
func New(cfg *config.Config, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		username:     cfg.AppUsername,
		passwordHash: []byte(cfg.AppPasswordHash),
		secretSet:    cfg.SessionSecret != "",
		maxLifetime:  defaultMaxSessionLifetime,
		idleTimeout:  defaultIdleTimeout,
		attempts:     newAttemptLimiter(defaultMaxLoginAttempts, defaultLoginWindow, defaultLockDuration),
		logger:       log,
		now:          time.Now,
	}
}

// SessionMaxAge はクッキーの MaxAge に使う秒数です。
func (a *Authenticator) SessionMaxAge() int {
	return int(a.maxLifetime.Seconds())
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /api/auth/login のハンドラーです。成功すると 204 と CSRF トークンを返します。
func (a *Authenticator) Login(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), a.logger)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resource.JSONError(c, http.StatusBadRequest, "INVALID_INPUT", "username と password を JSON で送ってください")
		return
	}

	if err := a.ensureCredentials(); err != nil {
		log.Error("login is not configured", "error", err)
		resource.JSONError(c, http.StatusInternalServerError, "SERVER_MISCONFIGURATION", err.Error())
		return
	}

	ip := c.ClientIP()
	if retryAfter := a.attempts.locked(ip); retryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		resource.JSONError(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "一定時間後に再度お試しください")
		return
	}

	if req.Username != a.username || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		remaining := a.attempts.fail(ip)
		log.Warn("login failed", "client_ip", ip, "remaining_attempts", remaining)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           "ユーザー名またはパスワードが正しくありません",
			"remainingAttempts": remaining,
		})
		return
	}
	a.attempts.reset(ip)

	token, err := generateToken()
	if err != nil {
		resource.JSONError(c, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "CSRF トークンの生成に失敗しました")
		return
	}

	session := sessions.Default(c)
	now := a.now().Unix()
	session.Set(sessionKeyUser, a.username)
	session.Set(sessionKeyIssuedAt, now)
	session.Set(sessionKeyLastActive, now)
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		log.Error("failed to save session", "error", err)
		resource.JSONError(c, http.StatusInternalServerError, "SESSION_SAVE_FAILED", "セッションの保存に失敗しました")
		return
	}

	log.Info("login succeeded", "user", a.username)
	c.Header(csrfHeader, token)
	c.Status(http.StatusNoContent)
}

// Logout は POST /api/auth/logout のハンドラーです。
func (a *Authenticator) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		resource.JSONError(c, http.StatusInternalServerError, "SESSION_SAVE_FAILED", "セッションの削除に失敗しました")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *Authenticator) ensureCredentials() error {
	switch {
	case a.username == "":
		return errors.New("APP_USERNAME が設定されていません")
	case len(a.passwordHash) == 0:
		return errors.New("APP_PASSWORD_HASH が設定されていません")
	case !a.secretSet:
		return errors.New("SESSION_SECRET が設定されていません")
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵
	AuthRequired    bool   // API 配下にログインを要求するか

	// サーバー設定
	Port     string // APIサーバーのポート番号
	GinMode  string // Ginの実行モード (debug, release, test)
	LogLevel string // slog のログレベル (debug, info, warn, error)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// API設定
	APIName       string // URL に現れる API 名（例: v1）
	PublicBaseURL string // Location や result_uri に付けるベースURL（空ならパスのみ）
	DefaultLimit  int    // 一覧ページングの既定件数
	MaxLimit      int    // 一覧ページングの上限件数（0 で無制限）
	ResourcesFile string // リソースごとの上書き設定（YAML）
	PollRateLimit int    // state/result へのクライアント毎秒リクエスト数（0 で無効）
	PollRateBurst int    // 上記のバースト数

	// ジョブ/キュー設定
	QueueRedisURL     string // Asynq とジョブ状態用の Redis 接続URL
	QueueName         string // Asynq のキュー名
	WorkerConcurrency int    // ワーカーの同時実行数
	RunWorkers        bool   // API プロセス内でワーカーも動かすか
	JobExpireMinutes  int    // ジョブ状態の保持期間（分）

	// サンプルリソース設定
	DoubleDelaySeconds int   // double タスクの疑似処理時間（秒）
	MaxUploadBytes     int64 // reorder でアップロードできる最大サイズ（バイト）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		AuthRequired:    getEnvAsBool("AUTH_REQUIRED", false),

		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		APIName:       strings.Trim(getEnv("API_NAME", "v1"), "/"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		DefaultLimit:  getEnvAsInt("DEFAULT_LIMIT", 20),
		MaxLimit:      getEnvAsInt("MAX_LIMIT", 1000),
		ResourcesFile: getEnv("RESOURCES_FILE", ""),
		PollRateLimit: getEnvAsInt("POLL_RATE_LIMIT", 0),
		PollRateBurst: getEnvAsInt("POLL_RATE_BURST", 10),

		QueueRedisURL:     getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		QueueName:         getEnv("QUEUE_NAME", "default"),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		RunWorkers:        getEnvAsBool("RUN_WORKERS", true),
		JobExpireMinutes:  getEnvAsInt("JOB_EXPIRE_MINUTES", 60),

		DoubleDelaySeconds: getEnvAsInt("DOUBLE_DELAY_SECONDS", 5),
		MaxUploadBytes:     getEnvAsInt64("MAX_UPLOAD_BYTES", 20*1024*1024), // 20MB
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.APIName == "" {
		return fmt.Errorf("API_NAME must not be empty")
	}
	if c.DefaultLimit < 0 || c.MaxLimit < 0 {
		return fmt.Errorf("DEFAULT_LIMIT and MAX_LIMIT must be >= 0")
	}
	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME must not be empty")
	}

	if c.AuthRequired || c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when auth is enabled or in release mode")
		}
	}
	if c.AuthRequired {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required when AUTH_REQUIRED=true")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required when AUTH_REQUIRED=true")
		}
	}
	if c.GinMode == "release" && c.QueueRedisURL == "" {
		return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Package api は非同期リソースを API 名の下にまとめて登録し、gin ルーターへマウントします。
//
// 各リソースのルート記述子（状態・結果・一覧・詳細）に加えて、
// API のインデックス、リソースのスキーマ、OpenAPI 文書を提供します。
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/resource"
)

// Options は API の設定です。
type Options struct {
	Name         string // URL 上の API 名（例: v1）
	PathPrefix   string // マウント位置（例: /api）
	BaseURL      string // URI の先頭に付けるスキーム＋ホスト
	DefaultLimit int
	MaxLimit     int
	Overrides    config.ResourceOverrides
	// PollRateLimit は状態・結果ルートへのクライアントごとの毎秒リクエスト数です。0 なら無制限。
	PollRateLimit float64
	PollRateBurst int
	Logger        *slog.Logger
}

// API は同じ API 名に属するリソースの集合です。
type API struct {
	opts     Options
	backend  jobs.Backend
	logger   *slog.Logger
	bindings []*async.Binding
	byName   map[string]*async.Binding
}

// New は API を作成します。
func New(backend jobs.Backend, opts Options) (*API, error) {
	opts.Name = strings.Trim(opts.Name, "/")
	if opts.Name == "" {
		return nil, errors.New("api name is required")
	}
	if backend == nil {
		return nil, errors.New("job backend is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		opts:    opts,
		backend: backend,
		logger:  logger,
		byName:  make(map[string]*async.Binding),
	}, nil
}

// Name は API 名を返します。
func (a *API) Name() string {
	return a.opts.Name
}

// Register はリソースを登録します。
// Meta の APIName を設定し、設定ファイルの上書きと既定値を適用してから Binding を作ります。
func (a *API) Register(res async.Resource) (*async.Binding, error) {
	meta := res.Meta()
	if meta == nil || meta.ResourceName == "" {
		return nil, errors.New("resource name is required")
	}
	if _, exists := a.byName[meta.ResourceName]; exists {
		return nil, fmt.Errorf("resource %q is already registered", meta.ResourceName)
	}
	meta.APIName = a.opts.Name

	if o, ok := a.opts.Overrides[meta.ResourceName]; ok {
		applyOverride(meta, o)
	}
	meta.ApplyDefaults(a.opts.DefaultLimit, a.opts.MaxLimit)

	b := async.Bind(res, a.backend, async.Options{
		PathPrefix: a.opts.PathPrefix,
		BaseURL:    a.opts.BaseURL,
		Logger:     a.logger,
	})
	a.bindings = append(a.bindings, b)
	a.byName[meta.ResourceName] = b
	a.logger.Info("resource registered", "api", a.opts.Name, "resource", meta.ResourceName, "path", b.BasePath()+"/")
	return b, nil
}

// Binding は登録済みリソースの Binding を返します。
func (a *API) Binding(resourceName string) (*async.Binding, bool) {
	b, ok := a.byName[resourceName]
	return b, ok
}

// Mount はインデックス・OpenAPI・各リソースのルートを router に登録します。
// middleware は API 配下のすべてのルートに適用されます（認証など）。
func (a *API) Mount(router gin.IRouter, middleware ...gin.HandlerFunc) {
	group := router.Group("", middleware...)
	root := a.rootPath()

	group.GET(root+"/", a.handleIndex)
	group.GET(root+"/openapi.json", a.handleOpenAPI)

	poll := newPollLimiter(a.opts.PollRateLimit, a.opts.PollRateBurst)
	for _, b := range a.bindings {
		group.GET(b.BasePath()+"/schema/", a.handleSchema(b))

		for _, r := range b.Routes() {
			handlers := []gin.HandlerFunc{r.Handler}
			if r.Poll && poll != nil {
				handlers = []gin.HandlerFunc{poll.middleware(), r.Handler}
			}
			if len(r.Methods) == 0 {
				group.Any(r.Path, handlers...)
				continue
			}
			for _, m := range r.Methods {
				group.Handle(m, r.Path, handlers...)
			}
		}
	}
}

func (a *API) rootPath() string {
	prefix := strings.Trim(a.opts.PathPrefix, "/")
	if prefix == "" {
		return "/" + a.opts.Name
	}
	return "/" + prefix + "/" + a.opts.Name
}

// handleIndex は登録済みリソースの一覧とスキーマの URL を返します。
func (a *API) handleIndex(c *gin.Context) {
	index := make(gin.H, len(a.bindings))
	for _, b := range a.bindings {
		list := b.ListURI()
		index[b.Meta().ResourceName] = gin.H{
			"list_endpoint": list,
			"schema":        list + "schema/",
		}
	}
	c.JSON(http.StatusOK, index)
}

func applyOverride(meta *resource.Meta, o config.ResourceOverride) {
	if o.Limit != nil {
		meta.Limit = *o.Limit
	}
	if o.MaxLimit != nil {
		meta.MaxLimit = *o.MaxLimit
	}
	if o.CollectionName != "" {
		meta.CollectionName = o.CollectionName
	}
	if len(o.Ordering) > 0 {
		meta.Ordering = append([]string(nil), o.Ordering...)
	}
	if o.IncludeResourceURI != nil {
		meta.IncludeResourceURI = *o.IncludeResourceURI
	}
}

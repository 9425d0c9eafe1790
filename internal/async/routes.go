package async

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/resource"
)

// ルート名。Reverse で URL を組み立てるときに使います。
const (
	RouteAsyncState   = "api_async_state"
	RouteAsyncResult  = "api_async_result"
	RouteDispatchList = "api_dispatch_list"
	RouteDispatchDet  = "api_dispatch_detail"
)

const (
	paramJobID        = "job_id"
	paramPK           = "pk"
	paramAPIName      = "api_name"
	paramResourceName = "resource_name"
)

// ジョブ ID は 36 文字の英数字・アンダースコア・ハイフン（UUID 形式）に限ります。
var jobIDPattern = regexp.MustCompile(`^[\w-]{36}$`)

// Route は1つのルート記述子です。Methods が空ならすべてのメソッドに登録します。
type Route struct {
	Name    string
	Methods []string
	Path    string
	Handler gin.HandlerFunc
	// Poll は状態・結果ポーリング用のルートであることを示します。
	Poll bool
}

// Options は Bind の設定です。
type Options struct {
	// PathPrefix は API 全体のマウント位置です（例: /api）。
	PathPrefix string
	// BaseURL は Location や result_uri の先頭に付けるスキーム＋ホストです。空ならパスのみ。
	BaseURL string
	Logger  *slog.Logger
}

// Binding は1つのリソースとジョブバックエンドを結び付け、ルートとハンドラーを提供します。
type Binding struct {
	res        Resource
	meta       *resource.Meta
	backend    jobs.Backend
	serializer *resource.Serializer
	base       string
	baseURL    string
	logger     *slog.Logger
	routes     []Route
}

// Bind は Binding を作成します。res.Meta() の APIName と ResourceName は設定済みである必要があります。
func Bind(res Resource, backend jobs.Backend, opts Options) *Binding {
	meta := res.Meta()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binding{
		res:     res,
		meta:    meta,
		backend: backend,
		base:    joinPath(opts.PathPrefix, meta.APIName, meta.ResourceName),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With("resource", meta.ResourceName),
	}
	b.serializer = &resource.Serializer{
		Resource:  res,
		DetailURI: b.DetailURI,
	}
	b.routes = b.buildRoutes()
	return b
}

// Meta はリソースの Meta を返します。
func (b *Binding) Meta() *resource.Meta {
	return b.meta
}

// BasePath はリソースのマウント位置（例: /api/v1/double）を返します。
func (b *Binding) BasePath() string {
	return b.base
}

// Routes はルート記述子を返します。非同期用のルートがリソース自身のルートより先に並びます。
func (b *Binding) Routes() []Route {
	return append([]Route(nil), b.routes...)
}

func (b *Binding) buildRoutes() []Route {
	listMethods := make([]string, 0, 5)
	detailMethods := make([]string, 0, 5)
	for _, op := range Operations {
		if op.Scope == ScopeList {
			listMethods = append(listMethods, string(op.Verb))
		} else {
			detailMethods = append(detailMethods, string(op.Verb))
		}
	}

	return []Route{
		{
			Name:    RouteAsyncState,
			Path:    b.base + "/state/:" + paramJobID + "/",
			Handler: b.handleState,
			Poll:    true,
		},
		{
			Name:    RouteAsyncResult,
			Path:    b.base + "/result/:" + paramJobID + "/",
			Handler: b.handleResult,
			Poll:    true,
		},
		{
			Name:    RouteDispatchList,
			Methods: listMethods,
			Path:    b.base + "/",
			Handler: b.dispatch(ScopeList),
		},
		{
			Name:    RouteDispatchDet,
			Methods: detailMethods,
			Path:    b.base + "/:" + paramPK + "/",
			Handler: b.dispatch(ScopeDetail),
		},
	}
}

// Reverse はルート名とパラメータから URL を組み立てます。
func (b *Binding) Reverse(name string, kwargs map[string]string) (string, error) {
	for _, r := range b.routes {
		if r.Name != name {
			continue
		}
		path, err := fillPattern(r.Path, kwargs)
		if err != nil {
			return "", fmt.Errorf("reverse %s: %w", name, err)
		}
		return b.baseURL + path, nil
	}
	return "", fmt.Errorf("reverse %s: no such route", name)
}

func (b *Binding) mustReverse(name string, kwargs map[string]string) string {
	uri, err := b.Reverse(name, kwargs)
	if err != nil {
		panic(err)
	}
	return uri
}

// StateURI はジョブの状態 URL を返します。
func (b *Binding) StateURI(jobID string) string {
	return b.mustReverse(RouteAsyncState, map[string]string{paramJobID: jobID})
}

// ResultURI はジョブの結果 URL を返します。
func (b *Binding) ResultURI(jobID string) string {
	return b.mustReverse(RouteAsyncResult, map[string]string{paramJobID: jobID})
}

// ListURI はリソースの一覧 URL を返します。
func (b *Binding) ListURI() string {
	return b.mustReverse(RouteDispatchList, nil)
}

// DetailURI はオブジェクト1件の URL を返します。
func (b *Binding) DetailURI(pk string) string {
	return b.mustReverse(RouteDispatchDet, map[string]string{paramPK: url.PathEscape(pk)})
}

func validJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

func fillPattern(pattern string, kwargs map[string]string) (string, error) {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		v, ok := kwargs[name]
		if !ok || v == "" {
			return "", fmt.Errorf("missing parameter %q", name)
		}
		segments[i] = v
	}
	return strings.Join(segments, "/"), nil
}

func joinPath(parts ...string) string {
	var sb strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		sb.WriteString("/")
		sb.WriteString(p)
	}
	return sb.String()
}

// kwargsFrom はパスパラメータからルーティング用のキーを除いたものを返します。
func kwargsFrom(c *gin.Context) map[string]string {
	kwargs := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		if p.Key == paramAPIName || p.Key == paramResourceName {
			continue
		}
		kwargs[p.Key] = p.Value
	}
	return kwargs
}

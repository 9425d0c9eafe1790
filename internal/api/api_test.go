package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/logger"
	"github.com/yourusername/async-resource/internal/resource"
)

type nullBackend struct{}

func (nullBackend) Lookup(context.Context, string) (*jobs.Record, error) { return nil, nil }

func (nullBackend) Revoke(context.Context, string, bool) error { return nil }

type stubResource struct {
	async.Unimplemented
	meta resource.Meta
}

func (r *stubResource) Meta() *resource.Meta { return &r.meta }

func newStub(name string) *stubResource {
	return &stubResource{meta: resource.Meta{
		ResourceName: name,
		Ordering:     []string{"id"},
		Fields: []resource.Field{
			{Name: "id", Type: resource.FieldInteger},
			{Name: "result", Type: resource.FieldString, Null: true, Help: "computed value"},
		},
	}}
}

func newTestAPI(t *testing.T, opts Options) *API {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "v1"
	}
	opts.PathPrefix = "/api"
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(nullBackend{}, opts)
	require.NoError(t, err)
	return a
}

func newRouter(a *API) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	a.Mount(router)
	return router
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(nullBackend{}, Options{Name: "/"})
	assert.Error(t, err)
	_, err = New(nil, Options{Name: "v1"})
	assert.Error(t, err)
}

func TestRegisterAppliesDefaultsAndOverrides(t *testing.T) {
	limit := 5
	include := true
	a := newTestAPI(t, Options{
		DefaultLimit: 20,
		MaxLimit:     1000,
		Overrides: config.ResourceOverrides{
			"double": {Limit: &limit, CollectionName: "results", IncludeResourceURI: &include},
		},
	})

	b, err := a.Register(newStub("double"))
	require.NoError(t, err)
	meta := b.Meta()
	assert.Equal(t, "v1", meta.APIName)
	assert.Equal(t, 5, meta.Limit)
	assert.Equal(t, 1000, meta.MaxLimit)
	assert.Equal(t, "results", meta.CollectionName)
	assert.True(t, meta.IncludeResourceURI)

	other, err := a.Register(newStub("other"))
	require.NoError(t, err)
	assert.Equal(t, 20, other.Meta().Limit)
	assert.Equal(t, "objects", other.Meta().CollectionName)

	_, err = a.Register(newStub("double"))
	assert.Error(t, err)
	_, err = a.Register(newStub(""))
	assert.Error(t, err)

	found, ok := a.Binding("double")
	require.True(t, ok)
	assert.Same(t, b, found)
}

func TestIndexListsResources(t *testing.T) {
	a := newTestAPI(t, Options{})
	_, err := a.Register(newStub("double"))
	require.NoError(t, err)
	router := newRouter(a)

	rec := get(router, "/api/v1/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"double":{"list_endpoint":"/api/v1/double/","schema":"/api/v1/double/schema/"}}`, rec.Body.String())
}

func TestSchemaDescribesResource(t *testing.T) {
	a := newTestAPI(t, Options{DefaultLimit: 20, MaxLimit: 1000})
	_, err := a.Register(newStub("double"))
	require.NoError(t, err)
	router := newRouter(a)

	rec := get(router, "/api/v1/double/schema/")
	require.Equal(t, http.StatusOK, rec.Code)

	var schema resourceSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Equal(t, 20, schema.DefaultLimit)
	assert.Equal(t, []string{"id"}, schema.Ordering)
	assert.Equal(t, "integer", schema.Fields["id"].Type)
	assert.True(t, schema.Fields["result"].Nullable)
	assert.Equal(t, "computed value", schema.Fields["result"].Help)
	assert.Len(t, schema.AllowedListHTTPMethods, 5)
	assert.Equal(t, "/api/v1/double/state/{job_id}/", schema.StateURITemplate)
}

func TestMountedRoutesDispatch(t *testing.T) {
	a := newTestAPI(t, Options{})
	_, err := a.Register(newStub("double"))
	require.NoError(t, err)
	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/double/", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = get(router, "/api/v1/double/state/0123456789abcdef0123456789abcdef0123/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"PENDING"`)
}

func TestOpenAPIDocument(t *testing.T) {
	a := newTestAPI(t, Options{})
	_, err := a.Register(newStub("double"))
	require.NoError(t, err)

	doc := a.Document()
	assert.Equal(t, "v1", doc.Info.Version)

	state := doc.Paths.Value("/api/v1/double/state/{job_id}/")
	require.NotNil(t, state)
	assert.NotNil(t, state.Get)
	assert.NotNil(t, state.Delete)
	assert.Nil(t, state.Post)

	detail := doc.Paths.Value("/api/v1/double/{pk}/")
	require.NotNil(t, detail)
	require.NotNil(t, detail.Patch)
	assert.Equal(t, "double_patch_detail", detail.Patch.OperationID)
	assert.NotNil(t, detail.Patch.Responses.Value("202"))

	router := newRouter(a)
	rec := get(router, "/api/v1/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "3.0.3", body["openapi"])
	assert.Contains(t, body["paths"], "/api/v1/double/result/{job_id}/")
}

func TestPollRateLimit(t *testing.T) {
	a := newTestAPI(t, Options{PollRateLimit: 0.001, PollRateBurst: 2})
	_, err := a.Register(newStub("double"))
	require.NoError(t, err)
	router := newRouter(a)
	target := "/api/v1/double/state/0123456789abcdef0123456789abcdef0123/"

	for i := 0; i < 2; i++ {
		rec := get(router, target)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := get(router, target)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	// ジョブ投入のルートは制限しない
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/double/", nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	}
}

func TestPollLimiterKeepsActiveClients(t *testing.T) {
	p := newPollLimiter(0.001, 1)
	now := time.Now()
	p.now = func() time.Time { return now }

	assert.True(t, p.get("10.0.0.1").Allow())

	// 期限内に来続けるクライアントの limiter は作り直さない
	for i := 0; i < 3; i++ {
		now = now.Add(4 * time.Minute)
		assert.False(t, p.get("10.0.0.1").Allow())
	}
}

func TestPollLimiterSweepsIdleClients(t *testing.T) {
	p := newPollLimiter(1, 1)
	now := time.Now()
	p.now = func() time.Time { return now }

	p.get("10.0.0.1")
	p.get("10.0.0.2")
	assert.Equal(t, 2, limiterCount(p))

	now = now.Add(limiterTTL + time.Second)
	p.get("10.0.0.3")
	assert.Equal(t, 1, limiterCount(p))
	_, ok := p.limiters.Load("10.0.0.3")
	assert.True(t, ok)

	// 期限切れのクライアントが戻ってきたら新しい limiter を使う
	now = now.Add(limiterTTL + time.Second)
	assert.True(t, p.get("10.0.0.1").Allow())
}

func limiterCount(p *pollLimiter) int {
	n := 0
	p.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestPollLimiterDisabled(t *testing.T) {
	assert.Nil(t, newPollLimiter(0, 10))
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = get(router, "/ping")
	assert.Len(t, rec.Body.String(), 36)
	assert.Equal(t, rec.Body.String(), rec.Header().Get("X-Request-ID"))
}

// Package async は REST リソースの各操作を非同期ジョブへ受け渡すレイヤーです。
//
// クライアントが通常の HTTP 動詞でリソースを呼ぶと、フックがジョブを投入し、
// サーバーは 202 と状態 URL（Location）を即座に返します。クライアントは
// 状態 URL をポーリングし、終端状態になったら結果 URL から成果物を取得します。
package async

import (
	"context"
	"net/http"
	"strings"

	"github.com/yourusername/async-resource/internal/resource"
)

// Verb はフックが扱う HTTP 動詞です。
type Verb string

const (
	VerbGet    Verb = http.MethodGet
	VerbPut    Verb = http.MethodPut
	VerbPost   Verb = http.MethodPost
	VerbDelete Verb = http.MethodDelete
	VerbPatch  Verb = http.MethodPatch
)

// Scope は操作対象が1件（detail）か一覧（list）かを表します。
type Scope string

const (
	ScopeDetail Scope = "detail"
	ScopeList   Scope = "list"
)

// Operation は動詞とスコープの組です。
type Operation struct {
	Verb  Verb
	Scope Scope
}

// String は "get_detail" のような名前を返します。
func (o Operation) String() string {
	return strings.ToLower(string(o.Verb)) + "_" + string(o.Scope)
}

// Operations は 10 種類すべての操作です。
var Operations = []Operation{
	{VerbGet, ScopeDetail},
	{VerbPut, ScopeDetail},
	{VerbPost, ScopeDetail},
	{VerbDelete, ScopeDetail},
	{VerbPatch, ScopeDetail},
	{VerbGet, ScopeList},
	{VerbPut, ScopeList},
	{VerbPost, ScopeList},
	{VerbDelete, ScopeList},
	{VerbPatch, ScopeList},
}

// Request はフックに渡されるリクエストです。
// Kwargs にはルーティング用のキーを除いたパスパラメータ（例: pk）が入ります。
type Request struct {
	*http.Request
	Kwargs map[string]string
}

// Kwarg は名前付きパスパラメータを返します。
func (r *Request) Kwarg(name string) string {
	return r.Kwargs[name]
}

// Hooks は操作ごとのフックです。返したエラーはそのままフレームワークのエラー処理に渡ります。
type Hooks interface {
	GetDetail(ctx context.Context, req *Request) (Outcome, error)
	PutDetail(ctx context.Context, req *Request) (Outcome, error)
	PostDetail(ctx context.Context, req *Request) (Outcome, error)
	DeleteDetail(ctx context.Context, req *Request) (Outcome, error)
	PatchDetail(ctx context.Context, req *Request) (Outcome, error)
	GetList(ctx context.Context, req *Request) (Outcome, error)
	PutList(ctx context.Context, req *Request) (Outcome, error)
	PostList(ctx context.Context, req *Request) (Outcome, error)
	DeleteList(ctx context.Context, req *Request) (Outcome, error)
	PatchList(ctx context.Context, req *Request) (Outcome, error)
}

// Resource は非同期化されたリソースです。
type Resource interface {
	resource.Resource
	Hooks
}

// Unimplemented を埋め込むと、実装していないフックはすべて 501 になります。
type Unimplemented struct{}

func (Unimplemented) GetDetail(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PutDetail(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PostDetail(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) DeleteDetail(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PatchDetail(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) GetList(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PutList(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PostList(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) DeleteList(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (Unimplemented) PatchList(context.Context, *Request) (Outcome, error) {
	return NotImplemented(), nil
}

func (o Operation) invoke(h Hooks, ctx context.Context, req *Request) (Outcome, error) {
	switch o {
	case Operation{VerbGet, ScopeDetail}:
		return h.GetDetail(ctx, req)
	case Operation{VerbPut, ScopeDetail}:
		return h.PutDetail(ctx, req)
	case Operation{VerbPost, ScopeDetail}:
		return h.PostDetail(ctx, req)
	case Operation{VerbDelete, ScopeDetail}:
		return h.DeleteDetail(ctx, req)
	case Operation{VerbPatch, ScopeDetail}:
		return h.PatchDetail(ctx, req)
	case Operation{VerbGet, ScopeList}:
		return h.GetList(ctx, req)
	case Operation{VerbPut, ScopeList}:
		return h.PutList(ctx, req)
	case Operation{VerbPost, ScopeList}:
		return h.PostList(ctx, req)
	case Operation{VerbDelete, ScopeList}:
		return h.DeleteList(ctx, req)
	case Operation{VerbPatch, ScopeList}:
		return h.PatchList(ctx, req)
	default:
		return NotImplemented(), nil
	}
}

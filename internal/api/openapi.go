package api

import (
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/jobs"
)

const jobIDSchemaPattern = `^[A-Za-z0-9_-]{36}$`

func (a *API) handleOpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, a.Document())
}

// Document は登録済みリソースの非同期 API を OpenAPI 3 文書として返します。
func (a *API) Document() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "Async resource API",
			Version: a.opts.Name,
		},
		Paths: openapi3.NewPaths(),
	}
	for _, b := range a.bindings {
		for _, r := range b.Routes() {
			item := doc.Paths.Value(openAPIPath(r.Path))
			if item == nil {
				item = &openapi3.PathItem{}
				doc.Paths.Set(openAPIPath(r.Path), item)
			}
			for method, op := range routeOperations(b, r) {
				item.SetOperation(method, op)
			}
		}
	}
	return doc
}

func routeOperations(b *async.Binding, r async.Route) map[string]*openapi3.Operation {
	name := b.Meta().ResourceName
	ops := make(map[string]*openapi3.Operation)

	switch r.Name {
	case async.RouteAsyncState:
		get := newOperation(name, name+"_state", "ジョブの状態を取得します。")
		get.AddParameter(jobIDParameter())
		get.AddResponse(http.StatusOK, openapi3.NewResponse().
			WithDescription("job state").
			WithJSONSchema(stateSchema()))
		get.AddResponse(http.StatusNotFound, errorResponse("invalid job id"))
		ops[http.MethodGet] = get

		del := newOperation(name, name+"_revoke", "未完了のジョブを取り消します。")
		del.AddParameter(jobIDParameter())
		del.AddResponse(http.StatusGone, errorResponse("job revoked"))
		del.AddResponse(http.StatusBadRequest, errorResponse("job already finished"))
		ops[http.MethodDelete] = del

	case async.RouteAsyncResult:
		get := newOperation(name, name+"_result", "完了したジョブの結果を取得します。")
		get.AddParameter(jobIDParameter())
		get.AddResponse(http.StatusOK, openapi3.NewResponse().
			WithDescription("job result, or {\"error\": message} for failed and revoked jobs"))
		get.AddResponse(http.StatusNotFound, errorResponse("job is not finished"))
		ops[http.MethodGet] = get

	default:
		for _, m := range r.Methods {
			opName := async.Operation{Verb: async.Verb(m), Scope: scopeOf(r)}.String()
			op := newOperation(name, name+"_"+opName, "ジョブを投入します。")
			if r.Name == async.RouteDispatchDet {
				op.AddParameter(openapi3.NewPathParameter("pk").
					WithSchema(openapi3.NewStringSchema()))
			}
			op.AddResponse(http.StatusAccepted, acceptedResponse())
			op.AddResponse(http.StatusBadRequest, errorResponse("no job was enqueued"))
			op.AddResponse(http.StatusNotImplemented, errorResponse("operation is not implemented"))
			ops[m] = op
		}
	}
	return ops
}

func scopeOf(r async.Route) async.Scope {
	if r.Name == async.RouteDispatchDet {
		return async.ScopeDetail
	}
	return async.ScopeList
}

func newOperation(tag, id, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	op.Responses = openapi3.NewResponsesWithCapacity(3)
	return op
}

func jobIDParameter() *openapi3.Parameter {
	return openapi3.NewPathParameter("job_id").
		WithSchema(openapi3.NewStringSchema().WithPattern(jobIDSchemaPattern))
}

func stateSchema() *openapi3.Schema {
	states := []any{
		string(jobs.StatePending),
		string(jobs.StateStarted),
		string(jobs.StateSuccess),
		string(jobs.StateFailure),
		string(jobs.StateRevoked),
	}
	return openapi3.NewObjectSchema().
		WithProperty("state", openapi3.NewStringSchema().WithEnum(states...)).
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("resource_uri", openapi3.NewStringSchema()).
		WithProperty("result_uri", openapi3.NewStringSchema())
}

func acceptedResponse() *openapi3.Response {
	resp := openapi3.NewResponse().
		WithDescription("job enqueued").
		WithJSONSchema(openapi3.NewObjectSchema().
			WithProperty("id", openapi3.NewStringSchema()).
			WithProperty("state_uri", openapi3.NewStringSchema()))
	resp.Headers = openapi3.Headers{
		"Location": &openapi3.HeaderRef{Value: &openapi3.Header{
			Parameter: openapi3.Parameter{
				Description: "job state URI",
				Schema:      openapi3.NewStringSchema().NewRef(),
			},
		}},
	}
	return resp
}

func errorResponse(description string) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchema(openapi3.NewObjectSchema().
			WithProperty("code", openapi3.NewStringSchema()).
			WithProperty("message", openapi3.NewStringSchema()))
}

// openAPIPath は gin の :param 形式を {param} 形式に変換します。
func openAPIPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/async"
)

type fieldSchema struct {
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  any    `json:"default,omitempty"`
	Help     string `json:"help_text,omitempty"`
}

type resourceSchema struct {
	AllowedDetailHTTPMethods []string               `json:"allowed_detail_http_methods"`
	AllowedListHTTPMethods   []string               `json:"allowed_list_http_methods"`
	DefaultFormat            string                 `json:"default_format"`
	DefaultLimit             int                    `json:"default_limit"`
	MaxLimit                 int                    `json:"max_limit"`
	Fields                   map[string]fieldSchema `json:"fields"`
	Ordering                 []string               `json:"ordering"`
	StateURITemplate         string                 `json:"state_uri_template"`
	ResultURITemplate        string                 `json:"result_uri_template"`
}

func (a *API) handleSchema(b *async.Binding) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, buildSchema(b))
	}
}

func buildSchema(b *async.Binding) resourceSchema {
	meta := b.Meta()
	s := resourceSchema{
		AllowedDetailHTTPMethods: []string{},
		AllowedListHTTPMethods:   []string{},
		DefaultFormat:            "application/json",
		DefaultLimit:             meta.Limit,
		MaxLimit:                 meta.MaxLimit,
		Fields:                   make(map[string]fieldSchema, len(meta.Fields)),
		Ordering:                 append([]string{}, meta.Ordering...),
	}
	for _, op := range async.Operations {
		if op.Scope == async.ScopeDetail {
			s.AllowedDetailHTTPMethods = append(s.AllowedDetailHTTPMethods, string(op.Verb))
		} else {
			s.AllowedListHTTPMethods = append(s.AllowedListHTTPMethods, string(op.Verb))
		}
	}
	for _, f := range meta.Fields {
		typ := string(f.Type)
		if typ == "" {
			typ = "string"
		}
		s.Fields[f.Name] = fieldSchema{
			Type:     typ,
			Nullable: f.Null,
			Default:  f.Default,
			Help:     f.Help,
		}
	}
	s.StateURITemplate = b.BasePath() + "/state/{job_id}/"
	s.ResultURITemplate = b.BasePath() + "/result/{job_id}/"
	return s
}

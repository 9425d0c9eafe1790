package resource

import (
	"maps"
	"net/http"
)

// Serializer はリソースの Meta に従ってオブジェクトを出力形式へ変換します。
type Serializer struct {
	Resource Resource
	// DetailURI は IncludeResourceURI のときに各オブジェクトの resource_uri を作ります。
	DetailURI func(pk string) string
}

// FullDehydrate は1オブジェクトを dehydrate します。
// マップ以外（スカラーや配列）はそのまま返します。
func (s *Serializer) FullDehydrate(r *http.Request, obj any, forList bool) (any, error) {
	data, ok := obj.(map[string]any)
	if !ok {
		return obj, nil
	}
	meta := s.Resource.Meta()

	out := make(map[string]any, len(meta.Fields)+1)
	if len(meta.Fields) == 0 {
		maps.Copy(out, data)
	}
	for _, f := range meta.Fields {
		v, err := f.dehydrate(data)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	if meta.IncludeResourceURI {
		out["resource_uri"] = s.resourceURI(meta, data)
	}

	if d, ok := s.Resource.(Dehydrator); ok {
		bundle := &Bundle{Request: r, Data: out, ForList: forList}
		if err := d.Dehydrate(bundle); err != nil {
			return nil, err
		}
		out = bundle.Data
	}
	return out, nil
}

// Detail は詳細レスポンスの本文を作ります。
func (s *Serializer) Detail(r *http.Request, obj any) (any, error) {
	data, err := s.FullDehydrate(r, obj, false)
	if err != nil {
		return nil, err
	}
	if alt, ok := s.Resource.(DetailAlterer); ok {
		data = alt.AlterDetailData(r, data)
	}
	return data, nil
}

// List は並べ替え・ページング・dehydrate を行い、一覧レスポンスの封筒を作ります。
// resourceURI は next/previous リンクの基点です。
func (s *Serializer) List(r *http.Request, objects []any, resourceURI string) (map[string]any, error) {
	meta := s.Resource.Meta()
	query := r.URL.Query()

	sorted, err := ApplySorting(meta, query, objects)
	if err != nil {
		return nil, err
	}

	paginator := &Paginator{
		Query:       query,
		Objects:     sorted,
		ResourceURI: resourceURI,
		Limit:       meta.Limit,
		MaxLimit:    meta.MaxLimit,
	}
	page, err := paginator.Page()
	if err != nil {
		return nil, err
	}

	items := make([]any, len(page.Objects))
	for i, obj := range page.Objects {
		if items[i], err = s.FullDehydrate(r, obj, true); err != nil {
			return nil, err
		}
	}

	envelope := map[string]any{
		"meta":              page.Meta,
		meta.CollectionName: items,
	}
	if alt, ok := s.Resource.(ListAlterer); ok {
		envelope = alt.AlterListData(r, envelope)
	}
	return envelope, nil
}

func (s *Serializer) resourceURI(meta *Meta, data map[string]any) string {
	pk, ok := data[meta.PrimaryKey]
	if !ok || pk == nil || s.DetailURI == nil {
		return ""
	}
	return s.DetailURI(toString(pk))
}

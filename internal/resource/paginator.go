package resource

import (
	"fmt"
	"net/url"
	"strconv"
)

// Paginator は limit/offset 方式で一覧をページングします。
type Paginator struct {
	Query       url.Values // リクエストのクエリ（limit, offset 以外は next/previous に引き継がれます）
	Objects     []any
	ResourceURI string // next/previous の基点となる URI
	Limit       int    // limit 未指定時のページサイズ
	MaxLimit    int    // 0 なら上限なし
}

// PageMeta は一覧レスポンスの meta 部分です。
type PageMeta struct {
	Limit      int     `json:"limit"`
	Next       *string `json:"next"`
	Offset     int     `json:"offset"`
	Previous   *string `json:"previous"`
	TotalCount int     `json:"total_count"`
}

// Page はページング結果です。
type Page struct {
	Meta    PageMeta
	Objects []any
}

// Page は現在のクエリに対応するページを返します。limit/offset が不正なら 400 の Error を返します。
func (p *Paginator) Page() (*Page, error) {
	limit, err := p.limit()
	if err != nil {
		return nil, err
	}
	offset, err := p.offset()
	if err != nil {
		return nil, err
	}

	total := len(p.Objects)
	meta := PageMeta{
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	}
	if limit > 0 {
		if offset-limit >= 0 {
			prev := p.uri(limit, offset-limit)
			meta.Previous = &prev
		}
		if offset+limit < total {
			next := p.uri(limit, offset+limit)
			meta.Next = &next
		}
	}

	return &Page{Meta: meta, Objects: p.slice(limit, offset)}, nil
}

func (p *Paginator) limit() (int, error) {
	limit := p.Limit
	if raw := p.Query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, BadRequest(fmt.Sprintf("Invalid limit '%s' provided. Please provide a positive integer.", raw))
		}
		limit = v
	}
	if limit < 0 {
		return 0, BadRequest(fmt.Sprintf("Invalid limit '%d' provided. Please provide a positive integer >= 0.", limit))
	}
	if p.MaxLimit > 0 && (limit == 0 || limit > p.MaxLimit) {
		return p.MaxLimit, nil
	}
	return limit, nil
}

func (p *Paginator) offset() (int, error) {
	raw := p.Query.Get("offset")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, BadRequest(fmt.Sprintf("Invalid offset '%s' provided. Please provide an integer.", raw))
	}
	if v < 0 {
		return 0, BadRequest(fmt.Sprintf("Invalid offset '%d' provided. Please provide a positive integer >= 0.", v))
	}
	return v, nil
}

func (p *Paginator) slice(limit, offset int) []any {
	if offset >= len(p.Objects) {
		return []any{}
	}
	end := len(p.Objects)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return p.Objects[offset:end]
}

func (p *Paginator) uri(limit, offset int) string {
	params := url.Values{}
	for k, v := range p.Query {
		if k == "limit" || k == "offset" {
			continue
		}
		params[k] = v
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return p.ResourceURI + "?" + params.Encode()
}

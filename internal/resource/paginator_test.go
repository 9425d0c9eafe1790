package resource

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbers(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestPaginatorDefaults(t *testing.T) {
	p := &Paginator{Query: url.Values{}, Objects: numbers(25), ResourceURI: "/r/", Limit: 20, MaxLimit: 1000}

	page, err := p.Page()
	require.NoError(t, err)
	assert.Equal(t, 20, page.Meta.Limit)
	assert.Equal(t, 0, page.Meta.Offset)
	assert.Equal(t, 25, page.Meta.TotalCount)
	assert.Nil(t, page.Meta.Previous)
	require.NotNil(t, page.Meta.Next)
	assert.Equal(t, "/r/?limit=20&offset=20", *page.Meta.Next)
	assert.Len(t, page.Objects, 20)
}

func TestPaginatorCarriesQueryIntoLinks(t *testing.T) {
	q := url.Values{"limit": {"2"}, "offset": {"2"}, "format": {"json"}}
	p := &Paginator{Query: q, Objects: numbers(5), ResourceURI: "/r/", Limit: 20}

	page, err := p.Page()
	require.NoError(t, err)
	assert.Equal(t, []any{float64(3), float64(4)}, page.Objects)
	require.NotNil(t, page.Meta.Previous)
	assert.Equal(t, "/r/?format=json&limit=2&offset=0", *page.Meta.Previous)
	require.NotNil(t, page.Meta.Next)
	assert.Equal(t, "/r/?format=json&limit=2&offset=4", *page.Meta.Next)
}

func TestPaginatorLimitZero(t *testing.T) {
	p := &Paginator{Query: url.Values{"limit": {"0"}}, Objects: numbers(5), Limit: 2, MaxLimit: 3}
	page, err := p.Page()
	require.NoError(t, err)
	assert.Equal(t, 3, page.Meta.Limit, "limit=0 falls back to max_limit")

	p = &Paginator{Query: url.Values{"limit": {"0"}}, Objects: numbers(5), Limit: 2}
	page, err = p.Page()
	require.NoError(t, err)
	assert.Equal(t, 0, page.Meta.Limit)
	assert.Len(t, page.Objects, 5)
	assert.Nil(t, page.Meta.Next)
	assert.Nil(t, page.Meta.Previous)
}

func TestPaginatorOffsetBeyondEnd(t *testing.T) {
	p := &Paginator{Query: url.Values{"offset": {"10"}}, Objects: numbers(3), Limit: 2}
	page, err := p.Page()
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
	assert.Nil(t, page.Meta.Next)
	assert.NotNil(t, page.Meta.Previous)
}

func TestPaginatorRejectsInvalidParams(t *testing.T) {
	for _, q := range []url.Values{
		{"limit": {"abc"}},
		{"limit": {"-1"}},
		{"offset": {"x"}},
		{"offset": {"-5"}},
	} {
		p := &Paginator{Query: q, Objects: numbers(3), Limit: 2}
		_, err := p.Page()
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr), "query %v", q)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	}
}

package resource

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

const orderByParam = "order_by"

type sortKey struct {
	attribute  string
	descending bool
}

// ApplySorting は order_by クエリに従って objects を安定ソートした新しいスライスを返します。
// order_by が無ければ元の順序のままです。"-id" のように先頭に - を付けると降順になります。
func ApplySorting(meta *Meta, query url.Values, objects []any) ([]any, error) {
	params := query[orderByParam]
	if len(params) == 0 {
		return objects, nil
	}

	keys := make([]sortKey, 0, len(params))
	for _, raw := range params {
		for _, part := range strings.Split(raw, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			descending := strings.HasPrefix(name, "-")
			name = strings.TrimPrefix(name, "-")
			if !meta.CanOrderBy(name) {
				return nil, BadRequest(fmt.Sprintf("No matching '%s' field for ordering on.", name))
			}
			keys = append(keys, sortKey{attribute: meta.attributeFor(name), descending: descending})
		}
	}
	if len(keys) == 0 {
		return objects, nil
	}

	sorted := slices.Clone(objects)
	slices.SortStableFunc(sorted, func(a, b any) int {
		for _, k := range keys {
			c := compareValues(lookup(a, k.attribute), lookup(b, k.attribute))
			if k.descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sorted, nil
}

func lookup(obj any, key string) any {
	if m, ok := obj.(map[string]any); ok {
		return m[key]
	}
	return nil
}

// compareValues は nil < bool < 数値 < 文字列 < その他 の順で比較します。
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		if ia, ok := exactInt(a); ok {
			if ib, ok := exactInt(b); ok {
				return cmp.Compare(ia, ib)
			}
		}
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case 3:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// exactInt は整数値を float64 を経由せずに取り出します。
func exactInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, float32, int, int32, int64, json.Number:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

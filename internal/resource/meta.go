// Package resource は REST リソースのシリアライズ処理（dehydrate・並べ替え・ページング）を提供します。
//
// 同期レスポンスと非同期ジョブの結果レスポンスが同じ形式になるよう、
// 両者はこのパッケージの Serializer を共有します。
package resource

import "net/http"

const (
	defaultCollectionName = "objects"
	defaultLimit          = 20
	defaultMaxLimit       = 1000
	defaultPrimaryKey     = "id"
)

// Resource はシリアライズ規約を持つ REST リソースです。
type Resource interface {
	Meta() *Meta
}

// Meta はリソースの名前とシリアライズ設定を保持します。
type Meta struct {
	APIName            string   // URL 上の API 名（例: v1）。登録時に API 側から設定されます。
	ResourceName       string   // URL 上のリソース名
	CollectionName     string   // 一覧レスポンスでオブジェクト配列を格納するキー
	Limit              int      // 既定のページサイズ
	MaxLimit           int      // ページサイズの上限（0 で無制限）
	Ordering           []string // order_by で指定できるフィールド
	Fields             []Field  // dehydrate 対象のフィールド（空なら入力をそのまま返す）
	IncludeResourceURI bool     // 各オブジェクトに resource_uri を付与するか
	PrimaryKey         string   // resource_uri を組み立てるときのキー
	Description        string   // スキーマ文書に載せる説明
}

// ApplyDefaults は未設定の項目に既定値を入れます。
func (m *Meta) ApplyDefaults(limit, maxLimit int) {
	if m.CollectionName == "" {
		m.CollectionName = defaultCollectionName
	}
	if m.Limit == 0 {
		m.Limit = limit
		if m.Limit == 0 {
			m.Limit = defaultLimit
		}
	}
	if m.MaxLimit == 0 {
		m.MaxLimit = maxLimit
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = defaultPrimaryKey
	}
}

// CanOrderBy は name が並べ替えに使えるかを返します。
func (m *Meta) CanOrderBy(name string) bool {
	for _, f := range m.Ordering {
		if f == name {
			return true
		}
	}
	return false
}

// attributeFor は並べ替えフィールド名を入力データのキーに変換します。
func (m *Meta) attributeFor(name string) string {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.attribute()
		}
	}
	return name
}

// Bundle は dehydrate 中のオブジェクトとリクエストをまとめたものです。
type Bundle struct {
	Request *http.Request
	Data    map[string]any
	ForList bool
}

// Dehydrator はフィールド変換の後にデータを加工したいリソースが実装します。
type Dehydrator interface {
	Dehydrate(b *Bundle) error
}

// DetailAlterer は詳細レスポンスを直前に書き換えたいリソースが実装します。
type DetailAlterer interface {
	AlterDetailData(r *http.Request, data any) any
}

// ListAlterer は一覧レスポンス（ページング済みの封筒）を直前に書き換えたいリソースが実装します。
type ListAlterer interface {
	AlterListData(r *http.Request, data map[string]any) map[string]any
}

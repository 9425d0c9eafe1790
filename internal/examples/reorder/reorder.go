// Package reorder は PDF のページ順を入れ替える非同期リソースです。
package reorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/resource"
)

// TaskType は reorder タスクの種別名です。
const TaskType = "pdf:reorder"

const (
	outputFilename        = "reordered.pdf"
	defaultMaxUploadBytes = 20 << 20
	multipartMemory       = 8 << 20
)

func init() {
	// 設定ディレクトリを作らせない
	pdfapi.DisableConfigDir()
}

// Payload はキューに載せる入力です。
type Payload struct {
	Filename string `json:"filename"`
	PDF      []byte `json:"pdf"`
	Order    []int  `json:"order"`
}

// Resource は POST /api/<api>/reorder/ でページ入替ジョブを投入します。
type Resource struct {
	async.Unimplemented
	meta           resource.Meta
	enqueuer       jobs.Enqueuer
	maxUploadBytes int64
}

// New は Resource を作成します。maxUploadBytes が 0 以下なら 20MB です。
func New(enqueuer jobs.Enqueuer, maxUploadBytes int64) *Resource {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Resource{
		meta: resource.Meta{
			ResourceName: "reorder",
			Description:  "PDF のページ順を order の通りに入れ替えます。",
		},
		enqueuer:       enqueuer,
		maxUploadBytes: maxUploadBytes,
	}
}

func (r *Resource) Meta() *resource.Meta {
	return &r.meta
}

// GetList はジョブを投入せず、使い方をそのまま返します。
func (r *Resource) GetList(context.Context, *async.Request) (async.Outcome, error) {
	resp, err := async.JSONResponse(http.StatusOK, map[string]any{
		"method":          http.MethodPost,
		"content_type":    "multipart/form-data",
		"fields":          map[string]string{"file": "PDF ファイル", "order": "0 始まりのページ番号の JSON 配列（例: [2,0,1]）"},
		"max_upload_size": r.maxUploadBytes,
	})
	if err != nil {
		return async.Outcome{}, err
	}
	return async.Respond(resp), nil
}

// PostList はアップロードされた PDF と order を検証してジョブを投入します。
func (r *Resource) PostList(ctx context.Context, req *async.Request) (async.Outcome, error) {
	payload, err := r.readUpload(req.Request)
	if err != nil {
		return async.Outcome{}, err
	}
	handle, err := r.enqueuer.Enqueue(ctx, TaskType, payload)
	if err != nil {
		return async.Outcome{}, fmt.Errorf("failed to enqueue reorder: %w", err)
	}
	return async.Enqueued(handle), nil
}

func (r *Resource) readUpload(req *http.Request) (*Payload, error) {
	req.Body = http.MaxBytesReader(nil, req.Body, r.maxUploadBytes+multipartMemory)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &resource.Error{Status: http.StatusRequestEntityTooLarge, Code: "LIMIT_EXCEEDED", Message: "ファイルサイズが上限を超えています。"}
		}
		return nil, resource.BadRequest("multipart/form-data でPDFファイルを送信してください。")
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("file")
	if err != nil {
		return nil, resource.BadRequest("PDFファイルを選択してください。")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, r.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > r.maxUploadBytes {
		return nil, &resource.Error{Status: http.StatusRequestEntityTooLarge, Code: "LIMIT_EXCEEDED", Message: "ファイルサイズが上限を超えています。"}
	}
	if !mimetype.Detect(data).Is("application/pdf") {
		return nil, resource.BadRequest("PDFファイルのみアップロードできます。")
	}

	order, err := parseOrder(req)
	if err != nil {
		return nil, resource.BadRequest(err.Error())
	}
	if len(order) == 0 {
		return nil, resource.BadRequest("ページの順序を指定してください。")
	}

	pages, err := pdfapi.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, resource.BadRequest("PDFを読み込めませんでした。ファイルが破損していないか確認してください。")
	}
	if err := validateOrder(order, pages); err != nil {
		return nil, resource.BadRequest(err.Error())
	}

	return &Payload{Filename: header.Filename, PDF: data, Order: order}, nil
}

// parseOrder は order（JSON 配列）または order[]（繰り返し）を読み取ります。
func parseOrder(req *http.Request) ([]int, error) {
	raw := strings.TrimSpace(req.PostFormValue("order"))
	if raw != "" {
		var order []int
		if err := json.Unmarshal([]byte(raw), &order); err != nil {
			return nil, errors.New("order は JSON 形式の整数配列で指定してください。例: [0,1,2]")
		}
		return order, nil
	}

	if values := req.PostForm["order[]"]; len(values) > 0 {
		order := make([]int, len(values))
		for i, v := range values {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				return nil, errors.New("order[] に空の値が含まれています。")
			}
			num, err := strconv.Atoi(trimmed)
			if err != nil {
				return nil, errors.New("order[] の値は整数で指定してください。")
			}
			order[i] = num
		}
		return order, nil
	}

	return nil, nil
}

func validateOrder(order []int, pageCount int) error {
	if len(order) != pageCount {
		return errors.New("order配列の長さがページ数と一致していません。")
	}

	seen := make([]bool, pageCount)
	for _, idx := range order {
		if idx < 0 || idx >= pageCount {
			return errors.New("order配列に不正なページ番号が含まれています。")
		}
		if seen[idx] {
			return errors.New("order配列に重複した番号が含まれています。")
		}
		seen[idx] = true
	}

	return nil
}

// Task はワーカー側の処理です。ページを並べ替えた PDF をダウンロード用のレスポンスとして返します。
func Task(ctx context.Context, payload []byte) (*jobs.Output, error) {
	var in Payload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("invalid reorder payload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf := newConfiguration()
	pages, err := pdfapi.PageCount(bytes.NewReader(in.PDF), conf)
	if err != nil {
		return nil, fmt.Errorf("PDFの読み込みに失敗しました: %w", err)
	}
	if err := validateOrder(in.Order, pages); err != nil {
		return nil, err
	}

	selectedPages := make([]string, len(in.Order))
	for i, idx := range in.Order {
		selectedPages[i] = strconv.Itoa(idx + 1)
	}

	var out bytes.Buffer
	if err := pdfapi.Collect(bytes.NewReader(in.PDF), &out, selectedPages, conf); err != nil {
		return nil, fmt.Errorf("PDFのページ入替に失敗しました: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/pdf")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", outputFilename, url.PathEscape(outputFilename)))
	header.Set("Cache-Control", "no-store")
	return jobs.ResponseOutput(http.StatusOK, header, out.Bytes()), nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

package reorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/resource"
)

type recordingEnqueuer struct {
	taskType string
	payload  any
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, taskType string, payload any) (*jobs.Handle, error) {
	e.taskType = taskType
	e.payload = payload
	return jobs.NewHandle(nil, "0123456789abcdef0123456789abcdef0123"), nil
}

// testPDF はページ数 pages の最小構成の PDF を作ります。
func testPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 100] >>", 100+i*10))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func newUpload(t *testing.T, file []byte, fields map[string][]string) *async.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if file != nil {
		part, err := w.CreateFormFile("file", "input.pdf")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/reorder/", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return &async.Request{Request: r}
}

func TestPostListEnqueuesValidUpload(t *testing.T) {
	enq := &recordingEnqueuer{}
	res := New(enq, 0)

	_, err := res.PostList(context.Background(), newUpload(t, testPDF(3), map[string][]string{"order": {"[2,0,1]"}}))
	require.NoError(t, err)
	assert.Equal(t, TaskType, enq.taskType)

	payload, ok := enq.payload.(*Payload)
	require.True(t, ok)
	assert.Equal(t, "input.pdf", payload.Filename)
	assert.Equal(t, []int{2, 0, 1}, payload.Order)
}

func TestPostListAcceptsOrderArray(t *testing.T) {
	enq := &recordingEnqueuer{}
	_, err := New(enq, 0).PostList(context.Background(), newUpload(t, testPDF(2), map[string][]string{"order[]": {"1", "0"}}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, enq.payload.(*Payload).Order)
}

func TestPostListRejectsInvalidUpload(t *testing.T) {
	cases := map[string]struct {
		file   []byte
		fields map[string][]string
		status int
	}{
		"missing file":   {nil, map[string][]string{"order": {"[0]"}}, http.StatusBadRequest},
		"not a pdf":      {[]byte("hello world"), map[string][]string{"order": {"[0]"}}, http.StatusBadRequest},
		"missing order":  {testPDF(2), nil, http.StatusBadRequest},
		"bad order json": {testPDF(2), map[string][]string{"order": {"[0,"}}, http.StatusBadRequest},
		"short order":    {testPDF(2), map[string][]string{"order": {"[0]"}}, http.StatusBadRequest},
		"duplicate":      {testPDF(2), map[string][]string{"order": {"[0,0]"}}, http.StatusBadRequest},
		"out of range":   {testPDF(2), map[string][]string{"order": {"[0,2]"}}, http.StatusBadRequest},
		"too large":      {testPDF(2), map[string][]string{"order": {"[1,0]"}}, http.StatusRequestEntityTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			enq := &recordingEnqueuer{}
			limit := int64(0)
			if tc.status == http.StatusRequestEntityTooLarge {
				limit = 64
			}
			_, err := New(enq, limit).PostList(context.Background(), newUpload(t, tc.file, tc.fields))
			var apiErr *resource.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Empty(t, enq.taskType)
		})
	}
}

func TestPostListRejectsNonMultipart(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/reorder/", strings.NewReader("order=[0]"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := New(&recordingEnqueuer{}, 0).PostList(context.Background(), &async.Request{Request: r})
	var apiErr *resource.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestGetListDescribesUsage(t *testing.T) {
	outcome, err := New(&recordingEnqueuer{}, 1024).GetList(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, async.NotImplemented(), outcome)
	assert.NotEqual(t, async.Rejected(), outcome)
}

func TestTaskReordersPages(t *testing.T) {
	payload, err := json.Marshal(Payload{Filename: "input.pdf", PDF: testPDF(3), Order: []int{2, 0, 1}})
	require.NoError(t, err)

	out, err := Task(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, jobs.OutputResponse, out.Kind)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, "application/pdf", http.Header(out.Header).Get("Content-Type"))
	assert.Contains(t, http.Header(out.Header).Get("Content-Disposition"), outputFilename)

	pages, err := pdfapi.PageCount(bytes.NewReader(out.Body), newConfiguration())
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestTaskRejectsMismatchedOrder(t *testing.T) {
	payload, err := json.Marshal(Payload{PDF: testPDF(2), Order: []int{0}})
	require.NoError(t, err)

	_, err = Task(context.Background(), payload)
	assert.Error(t, err)
}

func TestValidateOrder(t *testing.T) {
	assert.NoError(t, validateOrder([]int{1, 0, 2}, 3))
	assert.Error(t, validateOrder([]int{0, 1}, 3))
	assert.Error(t, validateOrder([]int{0, 0, 1}, 3))
	assert.Error(t, validateOrder([]int{0, 1, -1}, 3))
}

package runwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/denishartl/workouts-to-notion/internal/logger"
	"github.com/denishartl/workouts-to-notion/internal/notion"
	"github.com/denishartl/workouts-to-notion/internal/ratelimit"
	"github.com/denishartl/workouts-to-notion/internal/storage"
	"github.com/denishartl/workouts-to-notion/internal/vision"
)

func TestMain(m *testing.M) {
	// Discard logs to avoid polluting test output
	os.Setenv("ENV", "test")
	log = logger.NewLogger()
	os.Exit(m.Run())
}

var pngHeader = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 100)...)

const visionContent = `{"duration": 62.5, "distance": 4.82, "cadence": 175, "bpm": 145, "date": "2024-06-15"}`

// fakeUploader records the upload and returns a fixed URL.
type fakeUploader struct {
	url      string
	err      error
	filename string
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	u.filename = filename
	return u.url, u.err
}

func newHandler(t *testing.T, uploader storage.Uploader) *Handler {
	t.Helper()

	vc, err := vision.NewClient("https://vision.example.com/openai", "test-key", "gpt-4o")
	if err != nil {
		t.Fatalf("unable to create vision client: %s", err)
	}

	nc := notion.NewClient(context.Background(), "test-token", "workouts-db", "exercises-db", "runs-db")

	return New(ratelimit.New(), uploader, vc, nc)
}

func registerResponders(t *testing.T) {
	t.Helper()

	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": visionContent}},
		},
	})
	httpmock.RegisterResponder("POST", "https://vision.example.com/openai/chat/completions",
		httpmock.NewStringResponder(200, string(body)))

	httpmock.RegisterResponder("POST", `=~^https://api\.notion\.com/v1/databases/[\w-]+/query\z`,
		httpmock.NewStringResponder(200, `{"results":[]}`))

	httpmock.RegisterResponder("POST", "https://api.notion.com/v1/pages",
		httpmock.NewStringResponder(200, `{"id":"page-1","created_time":"2024-06-15T12:00:00.000Z","last_edited_time":"2024-06-15T12:00:00.000Z"}`))
}

// multipartRequest builds a run-webhook request with the given form fields
// and, when file is non-nil, a screenshot part named filename.
func multipartRequest(t *testing.T, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("unable to write field: %s", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("screenshot", filename)
		if err != nil {
			t.Fatalf("unable to create file part: %s", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("unable to write file part: %s", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/workout_webhook", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	return req
}

func TestServeHTTP(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerResponders(t)

	uploader := &fakeUploader{url: "https://blobs.example.com/run.png"}
	h := newHandler(t, uploader)

	req := multipartRequest(t, map[string]string{"knee_pain": "3", "comment": "felt good"}, "run.png", pngHeader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unable to unmarshal response: %s", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success, got %q", resp.Status)
	}
	if resp.NotionPageID != "page-1" {
		t.Errorf("unexpected page id %q", resp.NotionPageID)
	}
	if resp.Data == nil {
		t.Fatal("expected data in response")
	}
	if resp.Data.Duration != 62.5 || resp.Data.Date != "2024-06-15" {
		t.Errorf("unexpected data %+v", resp.Data)
	}
	if resp.Data.ImageBlobURL != "https://blobs.example.com/run.png" {
		t.Errorf("unexpected blob url %q", resp.Data.ImageBlobURL)
	}
	if uploader.filename != "run.png" {
		t.Errorf("expected upload of run.png, got %q", uploader.filename)
	}
}

func TestServeHTTPUploadFailureIsNotFatal(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerResponders(t)

	uploader := &fakeUploader{err: fmt.Errorf("bucket unavailable")}
	h := newHandler(t, uploader)

	req := multipartRequest(t, nil, "run.png", pngHeader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unable to unmarshal response: %s", err)
	}
	if resp.Data.ImageBlobURL != "" {
		t.Errorf("expected no blob url, got %q", resp.Data.ImageBlobURL)
	}
}

func TestServeHTTPBadRequests(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerResponders(t)

	h := newHandler(t, nil)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		file     []byte
	}{
		{"knee pain out of range", map[string]string{"knee_pain": "6"}, "run.png", pngHeader},
		{"knee pain not a number", map[string]string{"knee_pain": "ow"}, "run.png", pngHeader},
		{"missing screenshot", nil, "", nil},
		{"wrong extension", nil, "run.gif", pngHeader},
		{"content not an image", nil, "run.png", []byte("just some text, definitely not a png")},
		{"empty file", nil, "run.png", []byte{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, tc.fields, tc.filename, tc.file)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestServeHTTPVisionFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://vision.example.com/openai/chat/completions",
		httpmock.NewStringResponder(500, `{"error":"overloaded"}`))

	h := newHandler(t, nil)
	req := multipartRequest(t, nil, "run.png", pngHeader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServeHTTPSyncFailurePreservesData(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerResponders(t)

	httpmock.RegisterResponder("POST", "https://api.notion.com/v1/pages",
		httpmock.NewStringResponder(500, `{"message":"internal error"}`))

	h := newHandler(t, nil)
	req := multipartRequest(t, map[string]string{"comment": "rough one"}, "run.png", pngHeader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unable to unmarshal response: %s", err)
	}
	if resp.Status != "partial_success" {
		t.Errorf("expected partial_success, got %q", resp.Status)
	}
	if resp.Data == nil || resp.Data.Distance != 4.82 {
		t.Errorf("expected parsed data preserved, got %+v", resp.Data)
	}
	if resp.Data.Comment != "rough one" {
		t.Errorf("expected comment preserved, got %q", resp.Data.Comment)
	}
}

func TestServeHTTPOversizedBody(t *testing.T) {
	h := newHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/workout_webhook", strings.NewReader("ignored"))
	req.ContentLength = 11 * 1024 * 1024
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestServeHTTPRateLimited(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerResponders(t)

	h := newHandler(t, nil)

	var w *httptest.ResponseRecorder
	for i := 0; i < ratelimit.MaxRequestsPerWindow+1; i++ {
		req := multipartRequest(t, nil, "run.png", pngHeader)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

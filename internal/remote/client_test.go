package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/warraq-app/warraq/internal/retry"
)

func fastPolicy(t *testing.T) *retry.Policy {
	t.Helper()
	return retry.NewPolicy(
		retry.WithBase(1.000001),
		retry.WithCap(time.Millisecond),
		retry.WithJitter(func() float64 { return 0 }),
	)
}

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page-0001.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(slog.New(slog.DiscardHandler),
		WithBaseURLs(srv.URL, srv.URL),
		WithPolicy(fastPolicy(t)),
		WithHTTPClient(srv.Client()),
	)
}

func TestUploadSendsMultipartAndParsesID(t *testing.T) {
	var gotAuth, gotContentType string
	var metaJSON, filePart string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")

		mt, params, err := mime.ParseMediaType(gotContentType)
		if err != nil || !strings.HasPrefix(mt, "multipart/") {
			t.Errorf("unexpected content type %q", gotContentType)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for i := 0; ; i++ {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			buf := new(strings.Builder)
			if _, err := io.Copy(buf, p); err != nil {
				t.Errorf("read part %d: %v", i, err)
			}
			if i == 0 {
				metaJSON = buf.String()
			} else {
				filePart = buf.String()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"remote-123"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.Upload(context.Background(), writeTempImage(t), "tok")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "remote-123" {
		t.Fatalf("remote id = %q", id)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !strings.Contains(metaJSON, convertedDocMIMEType) {
		t.Fatalf("metadata does not request conversion: %s", metaJSON)
	}
	if filePart != "jpeg-bytes" {
		t.Fatalf("file part = %q", filePart)
	}
}

func TestUploadRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"remote-456"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.Upload(context.Background(), writeTempImage(t), "tok")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "remote-456" {
		t.Fatalf("remote id = %q", id)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestUploadTerminalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Upload(context.Background(), writeTempImage(t), "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("terminal error retried: %d calls", calls.Load())
	}
}

func TestExportTextCleansServiceArtifacts(t *testing.T) {
	raw := "\uFEFF________________\nActual OCR text\n\n\n\nsecond paragraph\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/files/remote-1/export") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("mimeType"); got != "text/plain" {
			t.Errorf("mimeType = %q", got)
		}
		_, _ = w.Write([]byte(raw))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	text, err := c.ExportText(context.Background(), "remote-1", "tok")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "Actual OCR text\n\nsecond paragraph"
	if text != want {
		t.Fatalf("cleaned text = %q, want %q", text, want)
	}
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.Delete(context.Background(), "remote-1", "tok"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteServerErrorSurfacesAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Delete(context.Background(), "remote-1", "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != int32(fastPolicy(t).MaxAttempts()) {
		t.Fatalf("expected all attempts used, got %d", calls.Load())
	}
}

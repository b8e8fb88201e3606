package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupStatic(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":   "<html></html>",
		"main.wasm":    "\x00asm\x01\x00\x00\x00",
		".env":         "SECRET=1",
		".git/config":  "[core]",
		"sub/page.txt": "page",
		"sub/.hidden":  "hidden",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New(setupStatic(t), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestContainsDotFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"/index.html", false},
		{"/sub/page.txt", false},
		{"/.env", true},
		{"/.git/config", true},
		{"/sub/.hidden", true},
		{"/", false},
	}
	for _, tt := range tests {
		if got := containsDotFile(tt.name); got != tt.want {
			t.Errorf("containsDotFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestServesWasm(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts.URL+"/main.wasm", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/wasm" {
		t.Errorf("Content-Type = %q, want application/wasm", ct)
	}
	if resp.Header.Get("ETag") == "" {
		t.Error("expected ETag")
	}
}

func TestHidesDotFiles(t *testing.T) {
	ts := newTestServer(t)

	for _, p := range []string{"/.env", "/.git/config", "/sub/.hidden"} {
		resp := get(t, ts.URL+p, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("GET %s status = %d, want 403", p, resp.StatusCode)
		}
	}
}

func TestListingOmitsDotFiles(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts.URL+"/sub/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	listing := buf.String()
	if !strings.Contains(listing, "page.txt") {
		t.Error("listing should contain page.txt")
	}
	if strings.Contains(listing, ".hidden") {
		t.Error("listing should not contain .hidden")
	}
}

func TestRevalidation(t *testing.T) {
	ts := newTestServer(t)

	first := get(t, ts.URL+"/main.wasm", nil)
	tag := first.Header.Get("ETag")
	if tag == "" {
		t.Fatal("expected ETag")
	}

	second := get(t, ts.URL+"/main.wasm", http.Header{"If-None-Match": {tag}})
	if second.StatusCode != http.StatusNotModified {
		t.Errorf("status = %d, want 304", second.StatusCode)
	}
}

func TestETagChangesWithContent(t *testing.T) {
	dir := setupStatic(t)
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	before, ok := s.etags.lookup(s.fs, "/main.wasm")
	if !ok {
		t.Fatal("lookup failed")
	}
	if err := os.WriteFile(filepath.Join(dir, "main.wasm"), []byte("\x00asm\x01\x00\x00\x00\x00"), 0644); err != nil {
		t.Fatal(err)
	}
	after, ok := s.etags.lookup(s.fs, "/main.wasm")
	if !ok {
		t.Fatal("lookup failed")
	}
	if before == after {
		t.Error("ETag should change when the file changes")
	}
}

func TestWithoutETags(t *testing.T) {
	ts := newTestServer(t, WithoutETags())

	resp := get(t, ts.URL+"/main.wasm", nil)
	if resp.Header.Get("ETag") != "" {
		t.Error("ETag should not be set")
	}
	if ct := resp.Header.Get("Content-Type"); ct != wasmContentType {
		t.Errorf("Content-Type = %q, want %s", ct, wasmContentType)
	}
}

func TestMissingWasmIsNotLabelledWasm(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts.URL+"/missing.wasm", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct == wasmContentType {
		t.Error("error responses should not carry application/wasm")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ts := newTestServer(t, WithLogger(zap.New(core)))

	get(t, ts.URL+"/main.wasm", nil)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d requests, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["uri"] != "/main.wasm" {
		t.Errorf("uri = %v", fields["uri"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Errorf("status = %v", fields["status"])
	}
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing path")
	}
	file := filepath.Join(t.TempDir(), "f")
	os.WriteFile(file, nil, 0644)
	if _, err := New(file); err == nil {
		t.Error("expected error for regular file")
	}
}

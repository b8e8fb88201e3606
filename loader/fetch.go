package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/wasmboot/artifactcache"
	"go.uber.org/zap"
)

// Fetcher retrieves an artifact by its path relative to a fixed base.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// NewFetcher returns an HTTPFetcher for http(s) bases and a DirFetcher for
// file:// URLs and plain directory paths.
func NewFetcher(base string, opts ...FetchOption) (Fetcher, error) {
	switch {
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		return NewHTTPFetcher(base, opts...)
	case strings.HasPrefix(base, "file://"):
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base %q: %w", base, err)
		}
		return NewDirFetcher(filepath.FromSlash(u.Path)), nil
	default:
		return NewDirFetcher(base), nil
	}
}

// FetchOption configures an HTTPFetcher.
type FetchOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithCache attaches a store used to revalidate instead of re-downloading.
func WithCache(s artifactcache.Store) FetchOption {
	return func(f *HTTPFetcher) {
		f.cache = s
	}
}

func WithFetchLogger(l *zap.Logger) FetchOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// HTTPFetcher issues one GET per Fetch with no-cache semantics: any stored
// copy is used only after the origin confirms it with 304 Not Modified.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
	cache  artifactcache.Store
	logger *zap.Logger
}

// NewHTTPFetcher resolves artifact names against base the way a document
// URL resolves relative links.
func NewHTTPFetcher(base string, opts ...FetchOption) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base %q: scheme must be http or https", base)
	}
	f := &HTTPFetcher{
		base:   u,
		client: http.DefaultClient,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Resolve returns the absolute URL for name.
func (f *HTTPFetcher) Resolve(name string) string {
	return f.base.ResolveReference(&url.URL{Path: name}).String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	target := f.Resolve(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	cached, haveCached := f.lookup(target)
	if haveCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCached:
		resp.Body.Close()
		f.logger.Debug("artifact not modified", zap.String("url", target))
		return io.NopCloser(bytes.NewReader(cached.Body)), nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		f.logger.Debug("artifact fetched",
			zap.String("url", target),
			zap.Int64("content_length", resp.ContentLength))
		if f.cache == nil {
			return resp.Body, nil
		}
		return &cachingBody{
			ReadCloser: resp.Body,
			fetcher:    f,
			key:        target,
			entry: artifactcache.Entry{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			},
		}, nil
	default:
		resp.Body.Close()
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
}

func (f *HTTPFetcher) lookup(key string) (artifactcache.Entry, bool) {
	if f.cache == nil {
		return artifactcache.Entry{}, false
	}
	e, ok, err := f.cache.Get(key)
	if err != nil {
		f.logger.Warn("artifact cache lookup failed", zap.String("url", key), zap.Error(err))
		return artifactcache.Entry{}, false
	}
	if !ok || !e.Validated() {
		return artifactcache.Entry{}, false
	}
	return e, true
}

// cachingBody copies the body as it is consumed and stores it once the
// reader reaches EOF. Partially read bodies are never stored.
type cachingBody struct {
	io.ReadCloser
	fetcher *HTTPFetcher
	key     string
	entry   artifactcache.Entry
	buf     bytes.Buffer
	stored  bool
}

func (c *cachingBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.buf.Write(p[:n])
	if err == io.EOF && !c.stored {
		c.stored = true
		c.store()
	}
	return n, err
}

func (c *cachingBody) store() {
	if !c.entry.Validated() {
		return
	}
	c.entry.Body = c.buf.Bytes()
	c.entry.StoredAt = time.Now()
	if err := c.fetcher.cache.Put(c.key, c.entry); err != nil {
		c.fetcher.logger.Warn("artifact cache store failed", zap.String("url", c.key), zap.Error(err))
	}
}

// DirFetcher reads artifacts from a local directory.
type DirFetcher struct {
	dir string
}

func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

func (d *DirFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.dir, filepath.FromSlash(name)))
}

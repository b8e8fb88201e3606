// Package server serves a static directory as the origin for main.wasm and
// the page that boots it.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
)

// DefaultPort matches the port the launcher page expects.
const DefaultPort = 9200

// wasmContentType is required for streaming instantiation.
const wasmContentType = "application/wasm"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithoutETags disables content hashing.
func WithoutETags() Option {
	return func(s *Server) {
		s.etags = nil
	}
}

type Server struct {
	root   string
	fs     http.FileSystem
	etags  *etagCache
	logger *zap.Logger
	mux    *http.ServeMux
}

// New returns a Server for the directory root.
func New(root string, opts ...Option) (*Server, error) {
	if root == "" {
		return nil, errors.New("static path must be set")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("static path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static path %s is not a directory", root)
	}

	s := &Server{
		root:   root,
		fs:     dotFileHidingFileSystem{http.Dir(root)},
		etags:  newETagCache(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.mux.Handle("/", s.withETag(http.FileServer(s.fs)))
	return s, nil
}

// Root returns the served directory.
func (s *Server) Root() string { return s.root }

// Handler returns the request handler with logging applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		s.mux.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// ListenAndServe serves on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr), zap.String("static", s.root))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// withETag sets the media type and a content ETag before the file server
// runs, so it can answer If-None-Match with 304.
func (s *Server) withETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if path.Ext(name) == ".wasm" {
			w.Header().Set("Content-Type", wasmContentType)
		}
		if s.etags != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			if tag, ok := s.etags.lookup(s.fs, name); ok {
				w.Header().Set("ETag", tag)
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRedirects   = 5
)

// HTTPConfig restricts guest network access. An empty AllowedHosts disables it.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	MaxRedirects   int
	RequestTimeout time.Duration
}

// DeniedError reports a guest request refused before or during transport.
// Redirects are checked against the same allow-list as the first hop.
type DeniedError struct {
	Reason string
	Detail string
}

func (e *DeniedError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

func deny(reason, detail string) *DeniedError {
	return &DeniedError{Reason: reason, Detail: detail}
}

// HTTPOption configures an HTTP capability.
type HTTPOption func(*HTTP)

// WithHTTPClient sends guest requests through a copy of c. The copy gets the
// configured timeout when c has none, and always the allow-list redirect check.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			clone := *c
			h.client = &clone
		}
	}
}

func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// HTTP performs outbound requests on behalf of the guest as http_request and
// http_get.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	h := &HTTP{
		cfg:    cfg,
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client.Timeout == 0 {
		h.client.Timeout = cfg.RequestTimeout
	}
	h.client.CheckRedirect = h.checkRedirect
	return h
}

// Register installs http_request and http_get into r.
func (h *HTTP) Register(r *Registry) {
	r.Register("http_request", h.Request)
	r.Register("http_get", func(ctx context.Context, args map[string]any) (any, error) {
		args["method"] = http.MethodGet
		return h.Request(ctx, args)
	})
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Request args: url (required), method, body, headers.
// Returns status, body, truncated and the first value of each response header.
func (h *HTTP) Request(ctx context.Context, args map[string]any) (any, error) {
	req, err := h.build(ctx, args)
	if err != nil {
		h.logDenied(err)
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		var denied *DeniedError
		if errors.As(err, &denied) {
			h.logDenied(denied)
			return nil, denied
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, truncated, err := readLimited(resp.Body, h.cfg.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if truncated {
		h.logger.Warn("guest http response truncated",
			zap.String("url", req.URL.Redacted()),
			zap.Int64("limit", h.cfg.MaxBodySize))
	}
	h.logger.Debug("guest http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode))

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return map[string]any{
		"status":    resp.StatusCode,
		"body":      string(body),
		"truncated": truncated,
		"headers":   headers,
	}, nil
}

// build validates the guest's arguments against the configured limits.
func (h *HTTP) build(ctx context.Context, args map[string]any) (*http.Request, error) {
	if len(h.cfg.AllowedHosts) == 0 {
		return nil, deny("http not enabled", "")
	}

	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, deny("unsupported method", method)
	}

	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, errors.New("url required")
	}
	if len(rawURL) > h.cfg.MaxURLLength {
		return nil, deny("url exceeds max length", "")
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.New("invalid url")
	}
	if err := h.checkTarget(target); err != nil {
		return nil, err
	}

	var body io.Reader
	if s, ok := args["body"].(string); ok && s != "" {
		if int64(len(s)) > h.cfg.MaxBodySize {
			return nil, deny("request body exceeds max size", "")
		}
		body = strings.NewReader(s)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	return req, nil
}

func (h *HTTP) checkTarget(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return deny("scheme must be http or https", "")
	}
	if host := u.Hostname(); !h.hostAllowed(host) {
		return deny("host not allowed", host)
	}
	return nil
}

func (h *HTTP) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > h.cfg.MaxRedirects {
		return deny("too many redirects", "")
	}
	if err := h.checkTarget(req.URL); err != nil {
		denied := err.(*DeniedError)
		return deny("redirect "+denied.Reason, denied.Detail)
	}
	return nil
}

// hostAllowed matches exact hosts and their subdomains.
func (h *HTTP) hostAllowed(host string) bool {
	for _, allowed := range h.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (h *HTTP) logDenied(err error) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		h.logger.Warn("guest http request denied",
			zap.String("reason", denied.Reason),
			zap.String("detail", denied.Detail))
	}
}

// readLimited reads at most limit bytes and reports whether more were available.
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

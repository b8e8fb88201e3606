package bridge

import (
	"io"
	"net/http"

	"github.com/caffeineduck/wasmboot/hostfunc"
	"go.uber.org/zap"
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	name     string
	args     []string
	env      map[string]string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	registry *hostfunc.Registry
	logger   *zap.Logger

	kvEnabled  bool
	kvConfig   hostfunc.KVConfig
	httpConfig hostfunc.HTTPConfig
	httpClient *http.Client
}

// DefaultProgramName is argv[0] seen by the artifact.
const DefaultProgramName = "main.wasm"

func defaultConfig() config {
	return config{
		args:   []string{DefaultProgramName},
		logger: zap.NewNop(),
	}
}

// WithName sets the instance name. The default is anonymous.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithArgs sets the arguments after argv[0].
func WithArgs(args ...string) Option {
	return func(c *config) {
		c.args = append([]string{DefaultProgramName}, args...)
	}
}

// WithEnv adds an environment variable.
func WithEnv(key, value string) Option {
	return func(c *config) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

func WithStdin(r io.Reader) Option {
	return func(c *config) {
		c.stdin = r
	}
}

func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.stderr = w
	}
}

// WithRegistry supplies custom host functions. Capability options add to it.
func WithRegistry(r *hostfunc.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithKV exposes an in-memory key-value store to the artifact.
func WithKV(cfg hostfunc.KVConfig) Option {
	return func(c *config) {
		c.kvEnabled = true
		c.kvConfig = cfg
	}
}

// WithHTTP exposes outbound HTTP limited to cfg.AllowedHosts.
func WithHTTP(cfg hostfunc.HTTPConfig) Option {
	return func(c *config) {
		c.httpConfig = cfg
	}
}

// WithHTTPClient sets the client guest requests go through, e.g. one with a
// proxy or custom transport. The allow-list still applies to every hop.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Package bridge is the runtime bridge between the loader and a running
// artifact. It supplies the import table an artifact is instantiated
// against and runs the resulting instance.
//
// A process builds one Bridge at start-up:
//
//	b := bridge.New(
//	    bridge.WithStdout(os.Stdout),
//	    bridge.WithKV(hostfunc.DefaultKVConfig()),
//	)
//	imports := b.Imports()
//	// instantiate against imports, then
//	err := b.Run(ctx, result.Instance)
//
// When host functions are enabled the bridge speaks a framed protocol over
// the guest's stderr and stdin; see [hostfunc] for the available functions.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/caffeineduck/wasmboot/hostfunc"
	"github.com/caffeineduck/wasmboot/wasmhost"
	"go.uber.org/zap"
)

// ErrNoInstance is returned by Run when given a nil instance.
var ErrNoInstance = errors.New("bridge: no instance to run")

// Bridge supplies imports and runs instances. Imports and Run may be called
// from different goroutines.
type Bridge struct {
	cfg config

	once     sync.Once
	imports  wasmhost.ImportTable
	protocol *protocolHandler
	replies  *io.PipeWriter
}

// New creates a bridge. Host functions are exposed only if a capability
// option is given or a non-empty registry is supplied.
func New(opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{cfg: cfg}
}

// Imports returns the import table. It is built once; later calls return the same table.
func (b *Bridge) Imports() wasmhost.ImportTable {
	b.once.Do(b.build)
	return b.imports
}

func (b *Bridge) build() {
	cfg := b.cfg
	b.imports = wasmhost.ImportTable{
		Name:   cfg.name,
		Args:   cfg.args,
		Env:    cfg.env,
		Stdin:  cfg.stdin,
		Stdout: cfg.stdout,
		Stderr: cfg.stderr,
	}

	registry := b.registry()
	if registry.Len() == 0 {
		return
	}

	stdinReader, stdinWriter := io.Pipe()
	b.replies = stdinWriter
	b.protocol = newProtocolHandler(registry, stdinWriter, cfg.stderr, cfg.logger)
	b.imports.Stdin = stdinReader
	b.imports.Stderr = b.protocol

	cfg.logger.Debug("host functions enabled", zap.Strings("functions", registry.Names()))
}

func (b *Bridge) registry() *hostfunc.Registry {
	cfg := b.cfg
	registry := cfg.registry
	if registry == nil {
		registry = hostfunc.NewRegistry()
	}
	if !cfg.kvEnabled && len(cfg.httpConfig.AllowedHosts) == 0 {
		return registry
	}

	registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	if cfg.kvEnabled {
		hostfunc.NewKV(cfg.kvConfig).Register(registry)
	}
	if len(cfg.httpConfig.AllowedHosts) > 0 {
		hostfunc.NewHTTP(cfg.httpConfig,
			hostfunc.WithHTTPClient(cfg.httpClient),
			hostfunc.WithHTTPLogger(cfg.logger.Named("http")),
		).Register(registry)
	}
	return registry
}

// Run invokes the instance's entry point and blocks until it returns.
// A clean exit returns nil; a trap or non-zero exit code is returned as an error.
func (b *Bridge) Run(ctx context.Context, inst wasmhost.Instance) error {
	if inst == nil {
		return ErrNoInstance
	}
	b.Imports()

	if b.protocol != nil {
		b.protocol.setContext(ctx)
	}

	start := time.Now()
	err := inst.Run(ctx)

	if b.replies != nil {
		b.replies.Close()
	}
	if b.protocol != nil {
		b.protocol.closeReplies()
		b.protocol.flush()
	}

	b.cfg.logger.Debug("instance returned",
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return err
}

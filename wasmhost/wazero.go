package wasmhost

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Wazero is a StreamingHost backed by a single wazero runtime with WASI
// preview1 available to every module.
type Wazero struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	cfg     config
	mu      sync.Mutex
	closed  bool
}

var _ StreamingHost = (*Wazero)(nil)

// NewWazero creates the runtime and instantiates WASI into it.
func NewWazero(ctx context.Context, opts ...Option) (*Wazero, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Wazero{runtime: rt, cache: cache, cfg: cfg}, nil
}

// Instantiate compiles src and instantiates it without running start functions.
func (w *Wazero) Instantiate(ctx context.Context, src []byte, imports ImportTable) (*Result, error) {
	if err := CheckHeader(src); err != nil {
		return nil, err
	}

	compiled, err := w.runtime.CompileModule(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	w.cfg.logger.Debug("module compiled",
		zap.String("name", compiled.Name()),
		zap.Int("size", len(src)))

	mod, err := w.runtime.InstantiateModule(ctx, compiled, moduleConfig(imports))
	if err != nil {
		compiled.Close(ctx)
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	return &Result{
		Module:   &wazeroModule{compiled: compiled},
		Instance: &wazeroInstance{mod: mod},
	}, nil
}

// InstantiateStreaming checks the preamble as soon as it arrives so that a
// body which is not WebAssembly is rejected before the rest is read.
func (w *Wazero) InstantiateStreaming(ctx context.Context, body io.Reader, imports ImportTable) (*Result, error) {
	head := make([]byte, HeaderSize)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := CheckHeader(head[:n]); err != nil {
		return nil, err
	}

	rest := body
	if w.cfg.maxModuleSize > 0 {
		rest = io.LimitReader(body, w.cfg.maxModuleSize-HeaderSize+1)
	}
	tail, err := io.ReadAll(rest)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	if w.cfg.maxModuleSize > 0 && int64(len(tail)+HeaderSize) > w.cfg.maxModuleSize {
		return nil, fmt.Errorf("module exceeds max size of %d bytes", w.cfg.maxModuleSize)
	}

	return w.Instantiate(ctx, append(head, tail...), imports)
}

// Close releases the runtime and the compilation cache.
func (w *Wazero) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.runtime.Close(ctx)
	if w.cache != nil {
		err = multierr.Append(err, w.cache.Close(ctx))
	}
	return err
}

func moduleConfig(imports ImportTable) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(imports.Name).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)

	if len(imports.Args) > 0 {
		cfg = cfg.WithArgs(imports.Args...)
	}
	keys := make([]string, 0, len(imports.Env))
	for k := range imports.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg = cfg.WithEnv(k, imports.Env[k])
	}
	if imports.Stdin != nil {
		cfg = cfg.WithStdin(imports.Stdin)
	}
	if imports.Stdout != nil {
		cfg = cfg.WithStdout(imports.Stdout)
	}
	if imports.Stderr != nil {
		cfg = cfg.WithStderr(imports.Stderr)
	}
	return cfg
}

type wazeroModule struct {
	compiled wazero.CompiledModule
}

func (m *wazeroModule) Name() string { return m.compiled.Name() }

func (m *wazeroModule) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type wazeroInstance struct {
	mod api.Module
}

func (i *wazeroInstance) Run(ctx context.Context) error {
	start := i.mod.ExportedFunction(StartFunction)
	if start == nil {
		return fmt.Errorf("module has no %s export", StartFunction)
	}
	_, err := start.Call(ctx)
	return exitStatus(err)
}

func (i *wazeroInstance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// exitStatus maps proc_exit(0) to a clean return and other codes to ExitError.
func exitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}

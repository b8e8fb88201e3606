package wasmhost

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Option configures a Wazero host at creation time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 = wazero default (65536 pages = 4GB)
	maxModuleSize    int64
	logger           *zap.Logger
}

// DefaultMaxModuleSize bounds how many bytes InstantiateStreaming consumes.
const DefaultMaxModuleSize = 256 << 20

func defaultConfig() config {
	return config{
		maxModuleSize: DefaultMaxModuleSize,
		logger:        zap.NewNop(),
	}
}

// WithDiskCache enables a persistent compilation cache.
// Optionally provide a custom directory; otherwise uses ~/.cache/wasmboot or XDG_CACHE_HOME/wasmboot.
//
// Examples:
//
//	wasmhost.NewWazero(ctx, wasmhost.WithDiskCache())            // default dir
//	wasmhost.NewWazero(ctx, wasmhost.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to the module.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithMaxModuleSize caps the size of a streamed module. Zero disables the cap.
func WithMaxModuleSize(n int64) Option {
	return func(c *config) {
		c.maxModuleSize = n
	}
}

// WithLogger sets the logger used for compilation and instantiation events.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "wasmboot")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "wasmboot")
	}
	return filepath.Join(os.TempDir(), "wasmboot-cache")
}

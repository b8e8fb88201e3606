package main

import (
	"context"
	"fmt"
	"maps"
	"os"

	"github.com/caffeineduck/wasmboot/artifactcache"
	"github.com/caffeineduck/wasmboot/bridge"
	"github.com/caffeineduck/wasmboot/hostfunc"
	"github.com/caffeineduck/wasmboot/loader"
	"github.com/caffeineduck/wasmboot/wasmhost"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [base] [-- args...]",
	Short: "Fetch and run main.wasm once",
	Long: `Fetch main.wasm from base and run it.

Base defaults to the current directory:
  - Directory: wasmboot run ./static
  - Origin:    wasmboot run http://localhost:9200/index.html
  - Guest args: wasmboot run ./static -- -v input.txt

The request always carries Cache-Control: no-cache. With --cache-backend
a stored copy is reused only after the origin answers 304 Not Modified.`,
	Args: runArgs,
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "wazero", "Runtime: wazero, wasmer")
	cmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().Bool("compile-cache", true, "Cache compiled modules on disk (wazero)")
	cmd.Flags().String("compile-cache-dir", "", "Compilation cache directory (default: $XDG_CACHE_HOME/wasmboot)")
	cmd.Flags().String("cache-backend", "none", "Artifact revalidation store: none, memory, leveldb, badger")
	cmd.Flags().String("cache-dir", "", "Directory for leveldb or badger stores")

	cmd.Flags().StringArray("env", nil, "Guest environment KEY=VALUE (repeatable)")
	cmd.Flags().String("env-file", "", "Load guest environment from a dotenv file")
	cmd.Flags().Bool("kv", false, "Enable key-value store")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")

	// Security limits
	cmd.Flags().Int("http-max-url", hostfunc.DefaultMaxURLLength, "Max HTTP URL length")
	cmd.Flags().Int64("http-max-body", hostfunc.DefaultMaxBodySize, "Max HTTP response body size")
}

// runArgs allows one base before "--" and anything after it.
func runArgs(cmd *cobra.Command, args []string) error {
	n := len(args)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		n = dash
	}
	if n > 1 {
		return fmt.Errorf("accepts at most 1 base, received %d", n)
	}
	return nil
}

func splitArgs(cmd *cobra.Command, args []string) (base string, guest []string) {
	base = "."
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		dash = len(args)
	}
	if dash > 0 {
		base = args[0]
	}
	return base, args[dash:]
}

// runtimeHost is a host that owns resources.
type runtimeHost interface {
	wasmhost.Host
	Close(ctx context.Context) error
}

func buildHost(ctx context.Context) (runtimeHost, error) {
	switch engine := cfg.GetString("engine"); engine {
	case "wazero":
		var opts []wasmhost.Option
		if cfg.GetBool("compile-cache") {
			if dir := cfg.GetString("compile-cache-dir"); dir != "" {
				opts = append(opts, wasmhost.WithDiskCache(dir))
			} else {
				opts = append(opts, wasmhost.WithDiskCache())
			}
		}
		if pages := parseMemoryLimit(cfg.GetString("memory")); pages > 0 {
			opts = append(opts, wasmhost.WithMemoryLimit(pages))
		}
		opts = append(opts, wasmhost.WithLogger(logger))
		return wasmhost.NewWazero(ctx, opts...)
	case "wasmer":
		return wasmhost.NewWasmer()
	default:
		return nil, fmt.Errorf("unknown engine %q: use wazero or wasmer", engine)
	}
}

func openCache() (artifactcache.Store, error) {
	backend := cfg.GetString("cache-backend")
	if backend == "" || backend == "none" {
		return nil, nil
	}
	return artifactcache.Open(backend, cfg.GetString("cache-dir"))
}

func guestEnv() (map[string]string, error) {
	env := make(map[string]string)
	if file := cfg.GetString("env-file"); file != "" {
		fromFile, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
		maps.Copy(env, fromFile)
	}
	flags, err := parseEnv(cfg.GetStringSlice("env"))
	if err != nil {
		return nil, err
	}
	maps.Copy(env, flags)
	return env, nil
}

func buildBridge(cmd *cobra.Command, guestArgs []string) (*bridge.Bridge, error) {
	env, err := guestEnv()
	if err != nil {
		return nil, err
	}

	opts := []bridge.Option{
		bridge.WithArgs(guestArgs...),
		bridge.WithStdin(os.Stdin),
		bridge.WithStdout(cmd.OutOrStdout()),
		bridge.WithStderr(cmd.ErrOrStderr()),
		bridge.WithLogger(logger),
	}
	for k, v := range env {
		opts = append(opts, bridge.WithEnv(k, v))
	}
	if cfg.GetBool("kv") {
		opts = append(opts, bridge.WithKV(hostfunc.DefaultKVConfig()))
	}
	if hosts := cfg.GetStringSlice("allow-host"); len(hosts) > 0 {
		opts = append(opts, bridge.WithHTTP(hostfunc.HTTPConfig{
			AllowedHosts: hosts,
			MaxURLLength: cfg.GetInt("http-max-url"),
			MaxBodySize:  cfg.GetInt64("http-max-body"),
		}))
	}
	return bridge.New(opts...), nil
}

// boot wires the loader and starts it. It returns the loader so the caller
// can inspect its final state, and a cleanup func for the host and store.
func boot(ctx context.Context, cmd *cobra.Command, args []string) (*loader.Loader, func() error, error) {
	base, guestArgs := splitArgs(cmd, args)

	host, err := buildHost(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, err := openCache()
	if err != nil {
		host.Close(ctx)
		return nil, nil, err
	}
	cleanup := func() error {
		err := host.Close(ctx)
		if store != nil {
			err = multierr.Append(err, store.Close())
		}
		return err
	}

	fetchOpts := []loader.FetchOption{loader.WithFetchLogger(logger)}
	if store != nil {
		fetchOpts = append(fetchOpts, loader.WithCache(store))
	}
	fetcher, err := loader.NewFetcher(base, fetchOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	b, err := buildBridge(cmd, guestArgs)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	l := loader.New(fetcher, loader.SelectInstantiator(host), b, loader.WithLogger(logger))
	l.Start(ctx)
	return l, cleanup, nil
}

func runRun(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	l, cleanup, err := boot(ctx, cmd, args)
	if err != nil {
		fail(err)
	}
	if err := cleanup(); err != nil {
		logger.Warn("cleanup failed", zap.Error(err))
	}
	_ = logger.Sync()

	if l.State() == loader.Failed {
		os.Exit(1)
	}
}

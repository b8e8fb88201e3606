package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/caffeineduck/wasmboot/internal/logging"
	"github.com/caffeineduck/wasmboot/wasmhost"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix namespaces environment overrides, e.g. WASMBOOT_LOG_LEVEL.
const EnvPrefix = "WASMBOOT"

var (
	cfg    = viper.New()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wasmboot [base] [-- args...]",
	Short: "Fetch, instantiate and run main.wasm",
	Long: `wasmboot - bootstrap a WebAssembly program.

Fetches main.wasm relative to base (an http(s) URL, file:// URL or
directory) with caching disabled, instantiates it against the runtime
bridge and runs it. Load failures are logged once; nothing is retried.

Every flag can also be set through a WASMBOOT_* environment variable
or a config file given with --config.`,
	Args:              runArgs,
	PersistentPreRunE: initConfig,
	Run:               runRun, // Default to run command behavior
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatConsole, "Log format: console, json")
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json)")

	addRunFlags(rootCmd)
}

// initConfig layers flags over the config file and environment, then builds
// the logger every command uses.
func initConfig(cmd *cobra.Command, args []string) error {
	cfg.SetEnvPrefix(EnvPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if err := cfg.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if file := cfg.GetString("config"); file != "" {
		cfg.SetConfigFile(file)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	l, err := logging.New(cfg.GetString("log-level"), cfg.GetString("log-format"))
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return wasmhost.MemoryLimit1MB
	case "16mb":
		return wasmhost.MemoryLimit16MB
	case "64mb":
		return wasmhost.MemoryLimit64MB
	case "256mb":
		return wasmhost.MemoryLimit256MB
	case "1gb":
		return wasmhost.MemoryLimit1GB
	default:
		return 0 // use default
	}
}

// parseEnv splits KEY=VALUE pairs.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env %q (expected KEY=VALUE)", p)
		}
		env[k] = v
	}
	return env, nil
}

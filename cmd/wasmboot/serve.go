package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caffeineduck/wasmboot/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a static directory as the origin for main.wasm",
	Long: `Start an HTTP server for a static directory, typically the page and
the main.wasm it boots.

Paths with an element starting with "." are refused with 403 and left out
of directory listings. .wasm files are served as application/wasm with a
content ETag so no-cache clients revalidate instead of downloading again.

Endpoints:
  GET    /<path>   Static file
  GET    /health   Health check`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().String("addr", "0.0.0.0", "Address to bind")
	serveCmd.Flags().String("static", "", "Path to static files (required)")
	serveCmd.Flags().Bool("no-etag", false, "Do not compute content ETags")

	rootCmd.AddCommand(serveCmd)
}

func buildServer() (*server.Server, string, error) {
	static := cfg.GetString("static")
	if static == "" {
		return nil, "", fmt.Errorf("--static is required")
	}

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.GetBool("no-etag") {
		opts = append(opts, server.WithoutETags())
	}
	s, err := server.New(static, opts...)
	if err != nil {
		return nil, "", err
	}
	addr := net.JoinHostPort(cfg.GetString("addr"), strconv.Itoa(cfg.GetInt("port")))
	return s, addr, nil
}

func runServe(cmd *cobra.Command, args []string) {
	s, addr, err := buildServer()
	if err != nil {
		fail(err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "wasmboot server listening on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Static path: %s\n", s.Root())
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("serve failed", zap.Error(err))
		fail(err)
	}
}

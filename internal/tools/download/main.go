// Command download copies main.wasm from an origin into a directory using the
// same no-cache fetch as the loader. It is used by the magefile to mirror a
// published build for local serving.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caffeineduck/wasmboot/loader"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: download <base> <dir>")
		os.Exit(1)
	}

	base, dir := os.Args[1], os.Args[2]
	output := filepath.Join(dir, loader.Artifact)

	if _, err := os.Stat(output); err == nil {
		return
	}

	fetcher, err := loader.NewFetcher(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	body, err := fetcher.Fetch(context.Background(), loader.Artifact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download failed: %v\n", err)
		os.Exit(1)
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := save(body, dir, output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// save writes r to a temp file in dir and renames it to output, so a failed
// copy never leaves a partial artifact behind.
func save(r io.Reader, dir, output string) error {
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), output)
}

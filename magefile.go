//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/pkg/errors"
)

var Default = Build

const (
	binary    = "bin/wasmboot"
	guestSrc  = "./internal/wasmtest/testdata/hello"
	staticDir = "static"
)

// Build compiles the wasmboot command.
func Build() error {
	mg.Deps(Test)
	if err := sh.RunV("go", "build", "-o", binary, "./cmd/wasmboot"); err != nil {
		return errors.WithMessage(err, "build wasmboot")
	}
	return nil
}

// BuildWasmer compiles wasmboot with the wasmer engine (requires cgo).
func BuildWasmer() error {
	if err := sh.RunV("go", "build", "-tags", "wasmer", "-o", binary+"-wasmer", "./cmd/wasmboot"); err != nil {
		return errors.WithMessage(err, "build wasmboot with wasmer")
	}
	return nil
}

// Guest compiles the sample program into static/main.wasm.
func Guest() error {
	if err := os.MkdirAll(staticDir, 0755); err != nil {
		return err
	}
	env := map[string]string{"GOOS": "wasip1", "GOARCH": "wasm"}
	out := filepath.Join(staticDir, "main.wasm")
	if err := sh.RunWith(env, "go", "build", "-o", out, guestSrc); err != nil {
		return errors.WithMessage(err, "build guest")
	}
	return nil
}

// Test runs the unit tests.
func Test() error {
	output, err := sh.Output("go", "test", "./...")
	if err != nil {
		return errors.WithMessage(err, output)
	}
	return nil
}

// Serve builds the guest and serves static/ on the default port.
func Serve() error {
	mg.Deps(Guest)
	return sh.RunV("go", "run", "./cmd/wasmboot", "serve", "--static", staticDir)
}

// Pull mirrors main.wasm from base into static/.
func Pull(base string) error {
	return sh.RunV("go", "run", "./internal/tools/download", base, staticDir)
}

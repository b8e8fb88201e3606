// Package wasmhost instantiates WebAssembly modules on an embedded runtime.
//
// A [Host] turns module bytes plus an [ImportTable] into a runnable
// [Instance]. Hosts that can validate and consume a module directly from a
// stream also implement [StreamingHost].
package wasmhost

import (
	"context"
	"fmt"
	"io"
)

// StartFunction is the entry point export invoked by Instance.Run.
const StartFunction = "_start"

// ImportTable describes what the host exposes to a module: WASI arguments,
// environment and standard streams. Nil streams are discarded.
type ImportTable struct {
	Name   string
	Args   []string
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Module is the compiled form of an artifact.
type Module interface {
	Name() string
	// Exports returns the exported function names in sorted order.
	Exports() []string
}

// Instance is an instantiated module ready to run.
type Instance interface {
	// Run invokes the entry point and blocks until it returns.
	// A clean exit (proc_exit(0) or a plain return) yields nil.
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is the module/instance pair produced by instantiation.
type Result struct {
	Module   Module
	Instance Instance
}

// Host instantiates modules from fully buffered bytes.
type Host interface {
	Instantiate(ctx context.Context, src []byte, imports ImportTable) (*Result, error)
}

// StreamingHost instantiates modules while consuming them from a stream.
type StreamingHost interface {
	Host
	InstantiateStreaming(ctx context.Context, body io.Reader, imports ImportTable) (*Result, error)
}

// ExitError reports a non-zero exit code from a module's entry point.
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("module exited with code %d", e.Code)
}

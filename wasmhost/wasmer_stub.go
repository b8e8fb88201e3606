//go:build !wasmer

package wasmhost

import (
	"context"
	"errors"
)

// ErrWasmerUnavailable is returned when the binary was built without the wasmer tag.
var ErrWasmerUnavailable = errors.New("wasmer support not compiled in; rebuild with -tags wasmer")

// Wasmer is unavailable in this build. Build with -tags wasmer (requires cgo).
type Wasmer struct{}

// NewWasmer always fails in builds without the wasmer tag.
func NewWasmer() (*Wasmer, error) {
	return nil, ErrWasmerUnavailable
}

func (w *Wasmer) Instantiate(ctx context.Context, src []byte, imports ImportTable) (*Result, error) {
	return nil, ErrWasmerUnavailable
}

func (w *Wasmer) Close(ctx context.Context) error { return nil }

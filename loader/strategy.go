package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/caffeineduck/wasmboot/wasmhost"
)

// Instantiator turns a response body into an instantiated module.
type Instantiator interface {
	InstantiateStreaming(ctx context.Context, body io.Reader, imports wasmhost.ImportTable) (*wasmhost.Result, error)
}

// SelectInstantiator returns host itself when it supports streaming
// instantiation, and otherwise a fallback that buffers the body and calls
// host.Instantiate.
func SelectInstantiator(host wasmhost.Host) Instantiator {
	if s, ok := host.(wasmhost.StreamingHost); ok {
		return s
	}
	return &bufferedInstantiator{host: host}
}

type bufferedInstantiator struct {
	host wasmhost.Host
}

func (b *bufferedInstantiator) InstantiateStreaming(ctx context.Context, body io.Reader, imports wasmhost.ImportTable) (*wasmhost.Result, error) {
	src, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return b.host.Instantiate(ctx, src, imports)
}

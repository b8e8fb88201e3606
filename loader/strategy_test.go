package loader

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/caffeineduck/wasmboot/internal/wasmtest"
	"github.com/caffeineduck/wasmboot/wasmhost"
)

// bufferedHost only supports instantiation from bytes.
type bufferedHost struct {
	calls int
	got   []byte
}

func (h *bufferedHost) Instantiate(ctx context.Context, src []byte, imports wasmhost.ImportTable) (*wasmhost.Result, error) {
	h.calls++
	h.got = src
	return &wasmhost.Result{}, nil
}

// streamingHost records which path was used.
type streamingHost struct {
	bufferedHost
	streamCalls int
}

func (h *streamingHost) InstantiateStreaming(ctx context.Context, body io.Reader, imports wasmhost.ImportTable) (*wasmhost.Result, error) {
	h.streamCalls++
	return &wasmhost.Result{}, nil
}

func TestSelectInstantiatorUsesNativeStreaming(t *testing.T) {
	host := &streamingHost{}

	inst := SelectInstantiator(host)
	if inst != Instantiator(host) {
		t.Fatalf("expected the host itself, got %T", inst)
	}
	if _, ok := inst.(*bufferedInstantiator); ok {
		t.Fatal("fallback must not be installed when streaming is native")
	}

	inst.InstantiateStreaming(context.Background(), bytes.NewReader(wasmtest.Noop()), wasmhost.ImportTable{})
	if host.streamCalls != 1 || host.calls != 0 {
		t.Errorf("streamCalls=%d calls=%d, want 1 and 0", host.streamCalls, host.calls)
	}
}

func TestSelectInstantiatorInstallsFallback(t *testing.T) {
	host := &bufferedHost{}

	inst := SelectInstantiator(host)
	if _, ok := inst.(*bufferedInstantiator); !ok {
		t.Fatalf("expected buffering fallback, got %T", inst)
	}

	src := wasmtest.Exit(5)
	if _, err := inst.InstantiateStreaming(context.Background(), bytes.NewReader(src), wasmhost.ImportTable{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.calls != 1 {
		t.Errorf("Instantiate calls = %d, want 1", host.calls)
	}
	if !bytes.Equal(host.got, src) {
		t.Errorf("fallback delivered %x, want %x", host.got, src)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestFallbackReadError(t *testing.T) {
	host := &bufferedHost{}

	_, err := SelectInstantiator(host).InstantiateStreaming(context.Background(), failingReader{}, wasmhost.ImportTable{})
	if err == nil {
		t.Fatal("expected read error")
	}
	if host.calls != 0 {
		t.Error("host should not be called after a read error")
	}
}

func TestWazeroIsStreaming(t *testing.T) {
	host, err := wasmhost.NewWazero(context.Background())
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	defer host.Close(context.Background())

	if _, ok := SelectInstantiator(host).(*bufferedInstantiator); ok {
		t.Error("wazero host supports streaming and should not be wrapped")
	}
}

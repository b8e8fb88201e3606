package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/wasmboot/hostfunc"
	"go.uber.org/zap"
)

// syncBuffer is a bytes.Buffer safe to read while replies are being written.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newTestHandler(registry *hostfunc.Registry) (*protocolHandler, *syncBuffer, *syncBuffer) {
	replies := &syncBuffer{}
	stderr := &syncBuffer{}
	return newProtocolHandler(registry, replies, stderr, zap.NewNop()), replies, stderr
}

func decodeReplies(t *testing.T, s string) []callResponse {
	t.Helper()
	var out []callResponse
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		var resp callResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("bad reply %q: %v", scanner.Text(), err)
		}
		out = append(out, resp)
	}
	return out
}

func TestProtocolPassthrough(t *testing.T) {
	p, replies, stderr := newTestHandler(hostfunc.NewRegistry())

	p.Write([]byte("plain output\n"))
	p.closeReplies()

	if stderr.String() != "plain output\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
	if replies.String() != "" {
		t.Errorf("unexpected reply %q", replies.String())
	}
}

func TestProtocolCall(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("greet", func(ctx context.Context, args map[string]any) (any, error) {
		return "Hello, " + args["name"].(string) + "!", nil
	})
	p, replies, stderr := newTestHandler(registry)

	p.Write([]byte("before" + protocolPrefix + `{"fn":"greet","args":{"name":"World"}}` + protocolSuffix + "after"))
	p.closeReplies()

	if stderr.String() != "beforeafter" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "beforeafter")
	}
	got := decodeReplies(t, replies.String())
	if len(got) != 1 || got[0].Data != "Hello, World!" {
		t.Errorf("replies = %+v", got)
	}
}

func TestProtocolSplitFrame(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})
	p, replies, stderr := newTestHandler(registry)

	frame := "x" + protocolPrefix + `{"fn":"ping"}` + protocolSuffix + "y"
	for i := 0; i < len(frame); i++ {
		p.Write([]byte{frame[i]})
	}
	p.closeReplies()
	p.flush()

	if stderr.String() != "xy" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "xy")
	}
	got := decodeReplies(t, replies.String())
	if len(got) != 1 || got[0].Data != "pong" {
		t.Errorf("replies = %+v", got)
	}
}

func TestProtocolErrors(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("fail", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"unknown function", `{"fn":"missing"}`, "unknown function: missing"},
		{"invalid json", `{not json`, "invalid call format"},
		{"function error", `{"fn":"fail"}`, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, replies, _ := newTestHandler(registry)
			p.Write([]byte(protocolPrefix + tt.payload + protocolSuffix))
			p.closeReplies()

			got := decodeReplies(t, replies.String())
			if len(got) != 1 || got[0].Error != tt.want {
				t.Errorf("replies = %+v, want error %q", got, tt.want)
			}
		})
	}
}

func TestProtocolFlushIncompleteFrame(t *testing.T) {
	p, _, stderr := newTestHandler(hostfunc.NewRegistry())

	p.Write([]byte("tail" + protocolPrefix + `{"fn":`))
	if stderr.String() != "tail" {
		t.Errorf("stderr before flush = %q", stderr.String())
	}
	p.flush()
	if !strings.HasSuffix(stderr.String(), `{"fn":`) {
		t.Errorf("flush should forward the incomplete frame, got %q", stderr.String())
	}
}

func TestPartialPrefixLen(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abc\x00", 1},
		{"abc\x00WB", 3},
		{"\x00WBOOT", 6},
	}
	for _, tt := range tests {
		if got := partialPrefixLen([]byte(tt.in)); got != tt.want {
			t.Errorf("partialPrefixLen(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProtocolReplyOverPipe(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})
	r, w := io.Pipe()
	p := newProtocolHandler(registry, w, io.Discard, zap.NewNop())

	p.Write([]byte(protocolPrefix + `{"fn":"ping"}` + protocolSuffix))

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(r).ReadString('\n')
		lines <- line
	}()

	select {
	case line := <-lines:
		if strings.TrimSpace(line) != `{"data":"pong"}` {
			t.Errorf("reply = %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
	w.Close()
	p.closeReplies()
}

func TestProtocolRepliesKeepCallOrder(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["n"], nil
	})
	r, w := io.Pipe()
	p := newProtocolHandler(registry, w, io.Discard, zap.NewNop())

	const calls = 8
	var frames strings.Builder
	for i := 0; i < calls; i++ {
		frames.WriteString(protocolPrefix + `{"fn":"echo","args":{"n":` + strconv.Itoa(i) + `}}` + protocolSuffix)
	}
	p.Write([]byte(frames.String()))

	got := make(chan []float64, 1)
	go func() {
		reader := bufio.NewReader(r)
		var ns []float64
		for i := 0; i < calls; i++ {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			var resp callResponse
			json.Unmarshal([]byte(line), &resp)
			n, _ := resp.Data.(float64)
			ns = append(ns, n)
		}
		got <- ns
	}()

	select {
	case ns := <-got:
		if len(ns) != calls {
			t.Fatalf("got %d replies, want %d", len(ns), calls)
		}
		for i, n := range ns {
			if int(n) != i {
				t.Errorf("reply %d carries %v, want %d", i, n, i)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replies")
	}
	w.Close()
	p.closeReplies()
}

func TestReplyQueueDropsAfterClose(t *testing.T) {
	out := &syncBuffer{}
	q := newReplyQueue(out)

	q.push([]byte("a\n"))
	q.push([]byte("b\n"))
	q.close()
	q.push([]byte("c\n"))

	if out.String() != "a\nb\n" {
		t.Errorf("written = %q, want %q", out.String(), "a\nb\n")
	}
}

func TestReplyQueueCloseWithoutReplies(t *testing.T) {
	q := newReplyQueue(io.Discard)
	done := make(chan struct{})
	go func() {
		q.close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close blocked with nothing queued")
	}
}

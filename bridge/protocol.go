package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/caffeineduck/wasmboot/hostfunc"
	"go.uber.org/zap"
)

// Host calls are framed on the guest's stderr as \x00WBOOT:{json}\x00.
// Each call is answered with one JSON line on the guest's stdin.
const (
	protocolPrefix = "\x00WBOOT:"
	protocolSuffix = "\x00"
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler sits on the guest's stderr. Plain output is forwarded to
// stderr; framed calls are dispatched to the registry.
type protocolHandler struct {
	ctx      context.Context
	registry *hostfunc.Registry
	replies  *replyQueue
	stderr   io.Writer
	logger   *zap.Logger
	buf      bytes.Buffer
	mu       sync.Mutex
}

func newProtocolHandler(registry *hostfunc.Registry, replies, stderr io.Writer, logger *zap.Logger) *protocolHandler {
	if stderr == nil {
		stderr = io.Discard
	}
	return &protocolHandler{
		ctx:      context.Background(),
		registry: registry,
		replies:  newReplyQueue(replies),
		stderr:   stderr,
		logger:   logger,
	}
}

func (p *protocolHandler) setContext(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.Bytes()
		start := bytes.Index(content, []byte(protocolPrefix))
		if start == -1 {
			// Hold back a trailing partial prefix until more data arrives.
			keep := partialPrefixLen(content)
			p.stderr.Write(content[:len(content)-keep])
			rest := append([]byte(nil), content[len(content)-keep:]...)
			p.buf.Reset()
			p.buf.Write(rest)
			break
		}

		p.stderr.Write(content[:start])

		payloadStart := start + len(protocolPrefix)
		end := bytes.Index(content[payloadStart:], []byte(protocolSuffix))
		if end == -1 {
			rest := append([]byte(nil), content[start:]...)
			p.buf.Reset()
			p.buf.Write(rest)
			break
		}

		payload := append([]byte(nil), content[payloadStart:payloadStart+end]...)
		rest := append([]byte(nil), content[payloadStart+end+len(protocolSuffix):]...)
		p.buf.Reset()
		p.buf.Write(rest)

		var req callRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			p.respond(callResponse{Error: "invalid call format"})
			continue
		}
		p.respond(p.handleCall(req))
	}

	return len(data), nil
}

// partialPrefixLen returns how many trailing bytes of b could begin a frame.
func partialPrefixLen(b []byte) int {
	for n := len(protocolPrefix) - 1; n > 0; n-- {
		if n <= len(b) && bytes.HasSuffix(b, []byte(protocolPrefix[:n])) {
			return n
		}
	}
	return 0
}

func (p *protocolHandler) respond(resp callResponse) {
	data, _ := json.Marshal(resp)
	p.replies.push(append(data, '\n'))
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	result, err := p.registry.Call(p.ctx, req.Fn, req.Args)
	switch {
	case errors.Is(err, hostfunc.ErrUnknownFunction):
		p.logger.Debug("unknown host function", zap.String("fn", req.Fn))
		return callResponse{Error: err.Error()}
	case err != nil:
		p.logger.Debug("host function failed", zap.String("fn", req.Fn), zap.Error(err))
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

// closeReplies waits for queued replies to be written.
func (p *protocolHandler) closeReplies() {
	p.replies.close()
}

// flush forwards any buffered output that never completed a frame.
func (p *protocolHandler) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() > 0 {
		p.stderr.Write(p.buf.Bytes())
		p.buf.Reset()
	}
}

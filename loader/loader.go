package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/wasmboot/wasmhost"
	"go.uber.org/zap"
)

// Artifact is the fixed path of the module, relative to the fetcher's base.
const Artifact = "main.wasm"

// State is the loader's position in its one-shot sequence.
type State int32

const (
	Idle State = iota
	Fetching
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Bridge supplies the import table and runs the instantiated module.
type Bridge interface {
	Imports() wasmhost.ImportTable
	Run(ctx context.Context, inst wasmhost.Instance) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Load failures go to Error, an unexpected
// return from the run stage goes to Info.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// Loader performs fetch, instantiate and run exactly once.
type Loader struct {
	fetcher      Fetcher
	instantiator Instantiator
	bridge       Bridge
	logger       *zap.Logger

	once  sync.Once
	state atomic.Int32
}

func New(fetcher Fetcher, instantiator Instantiator, bridge Bridge, opts ...Option) *Loader {
	l := &Loader{
		fetcher:      fetcher,
		instantiator: instantiator,
		bridge:       bridge,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) State() State {
	return State(l.state.Load())
}

// Start runs the sequence and blocks until the run stage returns or a load
// failure is logged. Calls after the first do nothing.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		l.fetchAndRun(ctx)
	})
}

func (l *Loader) fetchAndRun(ctx context.Context) {
	l.state.Store(int32(Fetching))

	result, err := l.load(ctx)
	if err != nil {
		l.state.Store(int32(Failed))
		fields := []zap.Field{zap.String("artifact", Artifact)}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			fields = append(fields, zap.String("stage", string(loadErr.Stage)))
		}
		l.logger.Error(err.Error(), fields...)
		return
	}

	l.state.Store(int32(Running))
	l.logger.Debug("running artifact",
		zap.String("artifact", Artifact),
		zap.Strings("exports", result.Module.Exports()))

	runErr := l.bridge.Run(ctx, result.Instance)

	fields := []zap.Field{zap.String("artifact", Artifact)}
	if runErr != nil {
		fields = append(fields, zap.Error(runErr))
	}
	l.logger.Info(Artifact+": returned from run", fields...)
}

func (l *Loader) load(ctx context.Context) (*wasmhost.Result, error) {
	body, err := l.fetcher.Fetch(ctx, Artifact)
	if err != nil {
		return nil, &LoadError{Artifact: Artifact, Stage: StageFetch, Err: err}
	}
	defer body.Close()

	result, err := l.instantiator.InstantiateStreaming(ctx, body, l.bridge.Imports())
	if err != nil {
		return nil, &LoadError{Artifact: Artifact, Stage: StageInstantiate, Err: err}
	}
	if result == nil || result.Instance == nil || result.Module == nil {
		return nil, &LoadError{Artifact: Artifact, Stage: StageInstantiate, Err: errors.New("host returned no instance")}
	}
	return result, nil
}

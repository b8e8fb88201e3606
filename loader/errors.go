package loader

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrArtifactLoad matches every fetch or instantiation failure.
var ErrArtifactLoad = errors.New("artifact load failed")

// Stage names the step of the pipeline that failed.
type Stage string

const (
	StageFetch       Stage = "fetch"
	StageInstantiate Stage = "instantiate"
)

// LoadError is the single failure kind of the loader. It wraps the cause
// and matches ErrArtifactLoad.
type LoadError struct {
	Artifact string
	Stage    Stage
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Stage, e.Artifact, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrArtifactLoad }

// StatusError reports a response that was neither successful nor a usable 304.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

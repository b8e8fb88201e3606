package wasmhost

import (
	"errors"
	"testing"
)

func TestParseWasiExit(t *testing.T) {
	tests := []struct {
		msg  string
		code uint32
		ok   bool
	}{
		{"WASI exited with code: 0", 0, true},
		{"WASI exited with code: 4", 4, true},
		{"RuntimeError: WASI exited with code: 127\n    at _start", 127, true},
		{"unreachable", 0, false},
		{"WASI exited with code: ", 0, false},
		{"WASI exited with code: 99999999999", 0, false},
	}
	for _, tt := range tests {
		code, ok := parseWasiExit(tt.msg)
		if code != tt.code || ok != tt.ok {
			t.Errorf("parseWasiExit(%q) = %d, %v, want %d, %v", tt.msg, code, ok, tt.code, tt.ok)
		}
	}
}

func TestWasiExitStatus(t *testing.T) {
	if err := wasiExitStatus(nil); err != nil {
		t.Errorf("nil = %v, want nil", err)
	}
	if err := wasiExitStatus(errors.New("WASI exited with code: 0")); err != nil {
		t.Errorf("exit 0 = %v, want nil", err)
	}

	var exitErr *ExitError
	if err := wasiExitStatus(errors.New("WASI exited with code: 3")); !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Errorf("exit 3 = %v, want ExitError{3}", err)
	}

	trap := errors.New("unreachable")
	if err := wasiExitStatus(trap); err != trap {
		t.Errorf("trap = %v, want it unchanged", err)
	}
}

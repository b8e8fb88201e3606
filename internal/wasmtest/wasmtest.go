// Package wasmtest provides tiny hand-assembled WebAssembly modules for tests.
//
// The modules are small enough to keep inline, which avoids shipping binary
// testdata and keeps the tests independent of a wasip1 toolchain. The guest
// under testdata/hello is built by the magefile for manual runs.
package wasmtest

// header is the module preamble: "\0asm" followed by version 1.
var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// startExport exports function index idx as "_start".
func startExport(idx byte) []byte {
	return []byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, idx}
}

func module(sections ...[]byte) []byte {
	out := append([]byte{}, header...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// Empty returns a valid module with no sections and therefore no entry point.
func Empty() []byte {
	return module()
}

// Noop returns a module whose _start returns immediately.
func Noop() []byte {
	return module(
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00}, // type: () -> ()
		[]byte{0x03, 0x02, 0x01, 0x00},             // func 0: type 0
		startExport(0),
		[]byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b}, // body: end
	)
}

// Trap returns a module whose _start executes unreachable.
func Trap() []byte {
	return module(
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
		[]byte{0x03, 0x02, 0x01, 0x00},
		startExport(0),
		[]byte{0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b}, // body: unreachable, end
	)
}

// Exit returns a module whose _start calls WASI proc_exit with code.
// code must be below 64 so it fits a single signed LEB128 byte.
func Exit(code byte) []byte {
	if code >= 64 {
		panic("wasmtest: exit code must be below 64")
	}
	imp := []byte{0x02, 0x24, 0x01, 0x16}
	imp = append(imp, "wasi_snapshot_preview1"...)
	imp = append(imp, 0x09)
	imp = append(imp, "proc_exit"...)
	imp = append(imp, 0x00, 0x01) // func, type 1

	return module(
		[]byte{0x01, 0x08, 0x02, 0x60, 0x00, 0x00, 0x60, 0x01, 0x7f, 0x00}, // () -> (), (i32) -> ()
		imp,
		[]byte{0x03, 0x02, 0x01, 0x00},
		startExport(1),
		[]byte{0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, code, 0x10, 0x00, 0x0b}, // i32.const code, call 0
	)
}

// Truncated returns a module with a valid header and a section whose declared
// size runs past the end of the input.
func Truncated() []byte {
	return module([]byte{0x01, 0x7f, 0x01})
}

// Malformed returns bytes that are not a WebAssembly module at all.
func Malformed() []byte {
	return []byte("<html>not found</html>")
}

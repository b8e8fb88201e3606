package wasmhost

import (
	"bytes"
	"errors"
	"fmt"
)

// HeaderSize is the length of the magic number plus version preamble.
const HeaderSize = 8

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}

	// ErrNotWasm is returned when input does not start with the wasm magic number.
	ErrNotWasm = errors.New("not a WebAssembly module")
)

// CheckHeader validates the module preamble at the start of b.
func CheckHeader(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrNotWasm, len(b))
	}
	if !bytes.Equal(b[:4], magic) {
		return fmt.Errorf("%w: bad magic %x", ErrNotWasm, b[:4])
	}
	if !bytes.Equal(b[4:HeaderSize], version) {
		return fmt.Errorf("unsupported WebAssembly version %x", b[4:HeaderSize])
	}
	return nil
}

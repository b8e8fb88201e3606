package wasmhost

import (
	"strconv"
	"strings"
)

// wasiExitMarker is how wasmer reports proc_exit: the call unwinds as a
// runtime error whose message carries the exit code.
const wasiExitMarker = "WASI exited with code: "

// parseWasiExit extracts the code from a wasmer proc_exit error message.
func parseWasiExit(msg string) (uint32, bool) {
	i := strings.Index(msg, wasiExitMarker)
	if i == -1 {
		return 0, false
	}
	rest := msg[i+len(wasiExitMarker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	code, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(code), true
}

// wasiExitStatus maps a wasmer proc_exit(0) to a clean return and other
// codes to ExitError. Traps pass through unchanged.
func wasiExitStatus(err error) error {
	if err == nil {
		return nil
	}
	code, ok := parseWasiExit(err.Error())
	if !ok {
		return err
	}
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

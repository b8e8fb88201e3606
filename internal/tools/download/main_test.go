package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "\x00asm"), nil
	}
	return 0, errors.New("connection reset")
}

func TestSaveWritesOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "main.wasm")

	if err := save(strings.NewReader("\x00asm\x01\x00\x00\x00"), dir, output); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\x00asm\x01\x00\x00\x00" {
		t.Errorf("output = %q", data)
	}
	assertOnly(t, dir, "main.wasm")
}

func TestSaveLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "main.wasm")

	if err := save(&failingReader{}, dir, output); err == nil {
		t.Fatal("expected copy error")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial output should not exist, stat err = %v", err)
	}
	assertOnly(t, dir)
}

func assertOnly(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(names, ",") {
		t.Errorf("dir holds %v, want %v", got, names)
	}
}

var _ io.Reader = (*failingReader)(nil)

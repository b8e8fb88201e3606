package hostfunc

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRegistryCall(t *testing.T) {
	r := NewRegistry()
	r.Register("args", func(ctx context.Context, args map[string]any) (any, error) {
		return len(args), nil
	})

	got, err := r.Call(context.Background(), "args", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("got %v, want 0 for nil args", got)
	}
}

func TestRegistryCallUnknown(t *testing.T) {
	_, err := NewRegistry().Call(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected ErrUnknownFunction, got %v", err)
	}
	if err.Error() != "unknown function: missing" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }
	r.Register("kv_set", noop)
	r.Register("http_get", noop)
	r.Register("kv_get", noop)
	r.Register("kv_get", noop)

	if got, want := r.Names(), []string{"http_get", "kv_get", "kv_set"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

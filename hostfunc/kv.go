package hostfunc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// KVConfig bounds the guest-visible key-value store. Zero fields use defaults.
type KVConfig struct {
	MaxKeySize   int
	MaxValueSize int // measured on the JSON encoding
	MaxEntries   int
}

const (
	DefaultKVMaxKeySize   = 256
	DefaultKVMaxValueSize = 64 << 10
	DefaultKVMaxEntries   = 1000
)

func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   DefaultKVMaxKeySize,
		MaxValueSize: DefaultKVMaxValueSize,
		MaxEntries:   DefaultKVMaxEntries,
	}
}

// KV is an in-memory store exposed to the guest as kv_get, kv_set, kv_delete and kv_keys.
type KV struct {
	cfg  KVConfig
	data map[string]json.RawMessage
	mu   sync.RWMutex
}

func NewKV(cfg KVConfig) *KV {
	def := DefaultKVConfig()
	if cfg.MaxKeySize == 0 {
		cfg.MaxKeySize = def.MaxKeySize
	}
	if cfg.MaxValueSize == 0 {
		cfg.MaxValueSize = def.MaxValueSize
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &KV{cfg: cfg, data: make(map[string]json.RawMessage)}
}

// Register installs the KV functions into r.
func (kv *KV) Register(r *Registry) {
	r.Register("kv_get", kv.Get)
	r.Register("kv_set", kv.Set)
	r.Register("kv_delete", kv.Delete)
	r.Register("kv_keys", kv.Keys)
}

func (kv *KV) key(args map[string]any) (string, error) {
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return "", errors.New("key required")
	}
	if len(key) > kv.cfg.MaxKeySize {
		return "", fmt.Errorf("key exceeds max size of %d bytes", kv.cfg.MaxKeySize)
	}
	return key, nil
}

// Get returns the stored value, or args["default"] (nil if absent) when missing.
func (kv *KV) Get(ctx context.Context, args map[string]any) (any, error) {
	key, err := kv.key(args)
	if err != nil {
		return nil, err
	}

	kv.mu.RLock()
	raw, ok := kv.data[key]
	kv.mu.RUnlock()

	if !ok {
		return args["default"], nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

func (kv *KV) Set(ctx context.Context, args map[string]any) (any, error) {
	key, err := kv.key(args)
	if err != nil {
		return nil, err
	}
	value, ok := args["value"]
	if !ok {
		return nil, errors.New("value required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	if len(raw) > kv.cfg.MaxValueSize {
		return nil, fmt.Errorf("value exceeds max size of %d bytes", kv.cfg.MaxValueSize)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, exists := kv.data[key]; !exists && len(kv.data) >= kv.cfg.MaxEntries {
		return nil, fmt.Errorf("store full (%d entries)", kv.cfg.MaxEntries)
	}
	kv.data[key] = raw
	return "ok", nil
}

func (kv *KV) Delete(ctx context.Context, args map[string]any) (any, error) {
	key, err := kv.key(args)
	if err != nil {
		return nil, err
	}
	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()
	return "ok", nil
}

func (kv *KV) Keys(ctx context.Context, args map[string]any) (any, error) {
	kv.mu.RLock()
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	kv.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Package artifactcache stores fetched artifacts together with their HTTP
// validators so that a no-cache fetch can revalidate instead of
// re-downloading.
package artifactcache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a stored response body and the validators it was served with.
type Entry struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Body         []byte    `json:"body"`
	StoredAt     time.Time `json:"stored_at"`
}

// Validated reports whether the entry carries a validator usable in a
// conditional request.
func (e Entry) Validated() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Store persists entries by key. Implementations are safe for concurrent use.
type Store interface {
	Get(key string) (Entry, bool, error)
	Put(key string, e Entry) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
)

// Open returns a store for the named backend. Disk backends keep their data in dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendLevelDB:
		return OpenLevelDB(dir)
	case BackendBadger:
		return OpenBadger(dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (expected memory, leveldb, or badger)", backend)
	}
}

func encode(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}

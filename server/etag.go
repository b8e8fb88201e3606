package server

import (
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"lukechampine.com/blake3"
)

type etagKey struct {
	name    string
	modTime time.Time
	size    int64
}

// etagCache memoizes content hashes. A file that changes on disk gets a new
// key because its mod time or size moves.
type etagCache struct {
	mu      sync.Mutex
	entries map[etagKey]string
}

func newETagCache() *etagCache {
	return &etagCache{entries: make(map[etagKey]string)}
}

func (c *etagCache) lookup(fsys http.FileSystem, name string) (string, bool) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return "", false
	}

	key := etagKey{name: name, modTime: info.ModTime(), size: info.Size()}
	c.mu.Lock()
	tag, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return tag, true
	}

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", false
	}
	tag = `"` + hex.EncodeToString(h.Sum(nil)) + `"`

	c.mu.Lock()
	c.entries[key] = tag
	c.mu.Unlock()
	return tag, true
}

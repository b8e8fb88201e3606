package artifactcache

import "sync"

// Memory is an in-process store. Entries are lost when the process exits.
type Memory struct {
	data map[string]Entry
	mu   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]Entry)}
}

func (m *Memory) Get(key string) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	e.Body = append([]byte(nil), e.Body...)
	return e, true, nil
}

func (m *Memory) Put(key string, e Entry) error {
	e.Body = append([]byte(nil), e.Body...)
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

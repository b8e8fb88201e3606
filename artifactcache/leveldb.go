package artifactcache

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB persists entries in a goleveldb database.
type LevelDB struct {
	db *leveldb.DB
}

func OpenLevelDB(dir string) (*LevelDB, error) {
	if dir == "" {
		return nil, errors.New("leveldb: directory required")
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key string) (Entry, bool, error) {
	data, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("leveldb get: %w", err)
	}
	e, err := decode(data)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (l *LevelDB) Put(key string, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := l.db.Put([]byte(key), data, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error { return l.db.Close() }

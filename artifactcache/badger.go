package artifactcache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// Badger persists entries in a badger key-value store.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string) (*Badger, error) {
	if dir == "" {
		return nil, errors.New("badger: directory required")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(key string) (Entry, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("badger get: %w", err)
	}
	e, err := decode(data)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (b *Badger) Put(key string, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }

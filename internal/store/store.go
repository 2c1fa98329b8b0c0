package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/xerrors"
)

var ErrNotFound = leveldb.ErrNotFound

// Reader is the read side shared by transactions and snapshots.
type Reader interface {
	// Load decodes the value stored under key into v, ErrNotFound if absent.
	Load(key []byte, v interface{}) error
	Has(key []byte) (bool, error)
	// Range walks keys under prefix in ascending order. When startAfter is not nil
	// iteration begins strictly after prefix+startAfter. fn receives the key with the
	// prefix stripped and returns false to stop.
	Range(prefix, startAfter []byte, fn func(key, value []byte) (bool, error)) error
}

type Writer interface {
	Reader
	Save(key []byte, v interface{}) error
	Delete(key []byte) error
}

type kvReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Has(key []byte, ro *opt.ReadOptions) (bool, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

type Store struct {
	db *leveldb.DB
	lk sync.Mutex
}

func OpenOrInit(p string) (*Store, error) {
	_, err := os.Stat(p)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		} else {
			if err := os.MkdirAll(p, 0700); err != nil {
				return nil, err
			}
		}
	}

	db, err := leveldb.OpenFile(p, nil)
	if err != nil {
		return nil, xerrors.Errorf("opening ledger at %s: %w", p, err)
	}
	return &Store{db: db}, nil
}

// NewMemStore returns a store that lives only in memory.
func NewMemStore() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside one transaction. Every write made by fn is committed
// atomically when fn returns nil and discarded otherwise.
func (s *Store) Update(fn func(w Writer) error) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return xerrors.Errorf("opening transaction: %w", err)
	}
	if err := fn(&tx{kv: tr, tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return xerrors.Errorf("committing transaction: %w", err)
	}
	return nil
}

// View runs fn against a consistent snapshot.
func (s *Store) View(fn func(r Reader) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return xerrors.Errorf("taking snapshot: %w", err)
	}
	defer snap.Release()
	return fn(&view{kv: snap})
}

type view struct {
	kv kvReader
}

func (v *view) Load(key []byte, out interface{}) error {
	value, err := v.kv.Get(key, nil)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("decoding key %x: %w", key, err)
	}
	return nil
}

func (v *view) Has(key []byte) (bool, error) {
	return v.kv.Has(key, nil)
}

func (v *view) Range(prefix, startAfter []byte, fn func(key, value []byte) (bool, error)) error {
	iter := v.kv.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var ok bool
	if startAfter != nil {
		start := append(append([]byte{}, prefix...), startAfter...)
		ok = iter.Seek(start)
		if ok && bytes.Equal(iter.Key(), start) {
			ok = iter.Next()
		}
	} else {
		ok = iter.First()
	}

	for ; ok; ok = iter.Next() {
		key := append([]byte{}, iter.Key()[len(prefix):]...)
		value := append([]byte{}, iter.Value()...)
		more, err := fn(key, value)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

type tx struct {
	kv kvReader
	tr *leveldb.Transaction
}

func (t *tx) Load(key []byte, out interface{}) error {
	return (&view{kv: t.kv}).Load(key, out)
}

func (t *tx) Has(key []byte) (bool, error) {
	return t.kv.Has(key, nil)
}

func (t *tx) Range(prefix, startAfter []byte, fn func(key, value []byte) (bool, error)) error {
	return (&view{kv: t.kv}).Range(prefix, startAfter, fn)
}

func (t *tx) Save(key []byte, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding key %x: %w", key, err)
	}
	if err = t.tr.Put(key, value, nil); err != nil {
		return fmt.Errorf("writing key %x: %w", key, err)
	}
	return nil
}

func (t *tx) Delete(key []byte) error {
	return t.tr.Delete(key, nil)
}

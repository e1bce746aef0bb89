package rawdb

import (
	"bytes"
	"slices"
	"sort"
	"strings"
	"sync"
)

// MemoryDB is the in-process store used by tests and the memory driver.
// Alongside the map it keeps the keys sorted, so the prefix scans behind
// user paging and the event log are a binary search plus a walk.
type MemoryDB struct {
	mu     sync.RWMutex
	data   map[string][]byte
	keys   []string
	closed bool
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return false, ErrClosed
	}
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	if v, ok := db.data[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (db *MemoryDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.set(string(key), bytes.Clone(value))
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.remove(string(key))
	return nil
}

// set and remove keep keys in step with data. Callers hold the write lock.
func (db *MemoryDB) set(k string, v []byte) {
	if _, ok := db.data[k]; !ok {
		i, _ := slices.BinarySearch(db.keys, k)
		db.keys = slices.Insert(db.keys, i, k)
	}
	db.data[k] = v
}

func (db *MemoryDB) remove(k string) {
	if _, ok := db.data[k]; !ok {
		return
	}
	delete(db.data, k)
	if i, found := slices.BinarySearch(db.keys, k); found {
		db.keys = slices.Delete(db.keys, i, i+1)
	}
}

func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

// NewIterator snapshots the matching entries, so writes made while
// iterating are not observed.
func (db *MemoryDB) NewIterator(prefix, start []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p := string(prefix)
	from := p + string(start)
	i := sort.SearchStrings(db.keys, from)
	var items []kv
	for ; i < len(db.keys) && strings.HasPrefix(db.keys[i], p); i++ {
		k := db.keys[i]
		items = append(items, kv{key: []byte(k), value: bytes.Clone(db.data[k])})
	}
	return &sliceIterator{items: items, pos: -1}
}

// NewBatch returns a batch applied under one write lock.
func (db *MemoryDB) NewBatch() Batch {
	return &memBatch{db: db}
}

type memWrite struct {
	key   string
	value []byte // nil deletes
}

type memBatch struct {
	db     *MemoryDB
	writes []memWrite
	size   int
}

func (b *memBatch) Put(key, value []byte) error {
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	b.writes = append(b.writes, memWrite{key: string(key), value: v})
	b.size += len(key) + len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.writes = append(b.writes, memWrite{key: string(key)})
	b.size += len(key)
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	if b.db.closed {
		return ErrClosed
	}
	for _, w := range b.writes {
		if w.value == nil {
			b.db.remove(w.key)
		} else {
			b.db.set(w.key, w.value)
		}
	}
	return nil
}

func (b *memBatch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

type kv struct {
	key, value []byte
}

// sliceIterator walks a materialised, sorted result set. The sqlite store
// uses it too.
type sliceIterator struct {
	items []kv
	pos   int
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.err != nil || it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return it.pos < len(it.items)
}

func (it *sliceIterator) current() *kv {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return &it.items[it.pos]
}

func (it *sliceIterator) Key() []byte {
	if c := it.current(); c != nil {
		return c.key
	}
	return nil
}

func (it *sliceIterator) Value() []byte {
	if c := it.current(); c != nil {
		return c.value
	}
	return nil
}

func (it *sliceIterator) Error() error { return it.err }

func (it *sliceIterator) Release() { it.items = nil }

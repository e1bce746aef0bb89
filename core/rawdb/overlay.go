// overlay.go provides a buffered write view over a KeyValueStore. All reads
// see the overlay's own pending writes first, then the backing store. Commit
// flushes the pending writes atomically through the store's Batch when it has
// one; Discard drops them. The host opens one Overlay per call, which is what
// makes a failed call leave no trace.
package rawdb

import (
	"bytes"
	"sort"
)

type pendingValue struct {
	value   []byte
	deleted bool
}

// Overlay is not safe for concurrent use.
type Overlay struct {
	db      KeyValueStore
	pending map[string]pendingValue
	size    int
}

// NewOverlay opens an empty overlay on db.
func NewOverlay(db KeyValueStore) *Overlay {
	return &Overlay{db: db, pending: make(map[string]pendingValue)}
}

func (o *Overlay) Has(key []byte) (bool, error) {
	if p, ok := o.pending[string(key)]; ok {
		return !p.deleted, nil
	}
	return o.db.Has(key)
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if p, ok := o.pending[string(key)]; ok {
		if p.deleted {
			return nil, ErrNotFound
		}
		return bytes.Clone(p.value), nil
	}
	return o.db.Get(key)
}

func (o *Overlay) Put(key, value []byte) error {
	o.pending[string(key)] = pendingValue{value: bytes.Clone(value)}
	o.size += len(key) + len(value)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.pending[string(key)] = pendingValue{deleted: true}
	o.size += len(key)
	return nil
}

// NewIterator merges the backing store's range with pending writes.
func (o *Overlay) NewIterator(prefix, start []byte) Iterator {
	from := string(append(bytes.Clone(prefix), start...))
	merged := make(map[string][]byte)

	it := o.db.NewIterator(prefix, start)
	for it.Next() {
		merged[string(it.Key())] = bytes.Clone(it.Value())
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return &sliceIterator{pos: -1, err: err}
	}

	for k, p := range o.pending {
		if !bytes.HasPrefix([]byte(k), prefix) || k < from {
			continue
		}
		if p.deleted {
			delete(merged, k)
		} else {
			merged[k] = bytes.Clone(p.value)
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]kv, len(keys))
	for i, k := range keys {
		items[i] = kv{key: []byte(k), value: merged[k]}
	}
	return &sliceIterator{items: items, pos: -1}
}

// Len returns the number of pending keys.
func (o *Overlay) Len() int { return len(o.pending) }

// ValueSize returns the number of bytes written so far.
func (o *Overlay) ValueSize() int { return o.size }

// Commit writes every pending change to the backing store, in key order,
// and empties the overlay.
func (o *Overlay) Commit() error {
	if len(o.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.pending))
	for k := range o.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var w KeyValueWriter = o.db
	var batch Batch
	if b, ok := o.db.(Batcher); ok {
		batch = b.NewBatch()
		w = batch
	}
	for _, k := range keys {
		p := o.pending[k]
		var err error
		if p.deleted {
			err = w.Delete([]byte(k))
		} else {
			err = w.Put([]byte(k), p.value)
		}
		if err != nil {
			return err
		}
	}
	if batch != nil {
		if err := batch.Write(); err != nil {
			return err
		}
	}
	o.Discard()
	return nil
}

// Discard drops all pending changes.
func (o *Overlay) Discard() {
	clear(o.pending)
	o.size = 0
}

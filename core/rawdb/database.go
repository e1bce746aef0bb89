// Package rawdb provides the key-value storage layer under the sale engine
// and the accessors that map sale records onto it.
//
// Every record kind uses a distinct single-byte key prefix to avoid
// collisions, see schema.go.
package rawdb

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("database closed")
)

// KeyValueReader wraps the Has and Get methods of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator iterates over key/value pairs in ascending key order. Error
// reports a failure that ended iteration early.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Iteratee wraps the NewIterator method of a backing data store. The
// iterator covers keys with the given prefix that are >= prefix+start.
type Iteratee interface {
	NewIterator(prefix, start []byte) Iterator
}

// Reader is the read-only view handed to queries.
type Reader interface {
	KeyValueReader
	Iteratee
}

// ReadWriter is the view handed to state-changing operations.
type ReadWriter interface {
	Reader
	KeyValueWriter
}

// KeyValueStore combines read and write access to a backing data store.
type KeyValueStore interface {
	ReadWriter
	Close() error
}

// Batch is a write-only database that commits changes atomically.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	NewBatch() Batch
}

// Database is the full database interface combining all capabilities.
type Database interface {
	KeyValueStore
	Batcher
}

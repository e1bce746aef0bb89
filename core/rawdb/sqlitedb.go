package rawdb

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb/migrations"
	_ "modernc.org/sqlite"
)

// SQLiteDB is a durable Database backed by a single SQLite table. A batch
// is one SQL transaction.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded migrations. path ":memory:" gives a private in-memory
// database.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: writes are serialised by the host anyway and an
	// in-memory database exists per connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteDB{db: sqlDB}, nil
}

func (s *SQLiteDB) Has(key []byte) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite has: %w", err)
	}
	return true, nil
}

func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

const upsertSQL = `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *SQLiteDB) Put(key, value []byte) error {
	if _, err := s.db.Exec(upsertSQL, key, nonNil(value)); err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewIterator loads the requested range eagerly so no connection is held
// while the caller walks it.
func (s *SQLiteDB) NewIterator(prefix, start []byte) Iterator {
	from := nonNil(append(bytes.Clone(prefix), start...))
	var (
		rows *sql.Rows
		err  error
	)
	if end := upperBound(prefix); end != nil {
		rows, err = s.db.Query(`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, from, end)
	} else {
		rows, err = s.db.Query(`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, from)
	}
	if err != nil {
		return &sliceIterator{pos: -1, err: fmt.Errorf("sqlite iterate: %w", err)}
	}
	defer rows.Close()

	var items []kv
	for rows.Next() {
		var item kv
		if err := rows.Scan(&item.key, &item.value); err != nil {
			return &sliceIterator{pos: -1, err: fmt.Errorf("sqlite iterate: %w", err)}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return &sliceIterator{pos: -1, err: fmt.Errorf("sqlite iterate: %w", err)}
	}
	return &sliceIterator{items: items, pos: -1}
}

// NewBatch creates a batch that writes in a single transaction.
func (s *SQLiteDB) NewBatch() Batch {
	return &sqliteBatch{db: s.db}
}

type batchOp struct {
	key, value []byte
	delete     bool
}

type sqliteBatch struct {
	db   *sql.DB
	ops  []batchOp
	size int
}

func (b *sqliteBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(nonNil(value))})
	b.size += len(key) + len(value)
	return nil
}

func (b *sqliteBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), delete: true})
	b.size += len(key)
	return nil
}

func (b *sqliteBatch) ValueSize() int { return b.size }

func (b *sqliteBatch) Write() error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite batch begin: %w", err)
	}
	for _, op := range b.ops {
		if op.delete {
			_, err = tx.Exec(`DELETE FROM kv WHERE key = ?`, op.key)
		} else {
			_, err = tx.Exec(upsertSQL, op.key, op.value)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite batch commit: %w", err)
	}
	return nil
}

func (b *sqliteBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// Package sqlstore implements the SQL persistence backend named by
// config.PersistenceSQL: one row per queue in a single table, holding
// both a full-state snapshot blob and an append-only event log blob,
// built on bun against modernc.org/sqlite. It satisfies the same
// persistence.Driver and persistence.LogDriver contracts the file-based
// Snapshot and Log drivers in the root module's persistence package do.
package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spartanq/spartanq/persistence"
	"github.com/spartanq/spartanq/queue"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// Store is a persistence.Driver and persistence.LogDriver backed by a
// SQL database, one row per queue.
type Store struct {
	db *bun.DB

	// mu serializes PersistEvent's read-modify-write of a queue's log
	// blob; bun/database-sql connections are otherwise safe for
	// concurrent use, but appending to a blob column isn't atomic
	// without either this or a dialect-specific append function.
	mu sync.Mutex
}

var (
	_ persistence.Driver    = (*Store)(nil)
	_ persistence.LogDriver = (*Store)(nil)
)

// Open opens (creating if necessary) a SQLite database at dsn and
// ensures the queues table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1) // important for sqlite
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func writeRecord(w io.Writer, e *queue.Event) error {
	var buf bytes.Buffer
	if err := queue.EncodeEvent(&buf, e); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(buf.Len()))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readRecord(r io.Reader) (*queue.Event, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return queue.DecodeEvent(bytes.NewReader(payload))
}

// LoadQueue implements persistence.Driver: the row's snapshot is
// decoded first, then every logged event recorded since that snapshot
// is replayed against it. A queue with no row yet loads as empty.
func (s *Store) LoadQueue(name string) (queue.Database, error) {
	ctx := context.Background()
	model := new(queueModel)
	err := s.db.NewSelect().Model(model).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.NewTreeDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load queue %q: %w", name, err)
	}

	var db queue.Database
	if len(model.Snapshot) == 0 {
		db = queue.NewTreeDatabase()
	} else {
		tree, err := queue.DecodeTree(bytes.NewReader(model.Snapshot))
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode snapshot for %q: %w", name, err)
		}
		db = tree
	}

	r := bytes.NewReader(model.Log)
	for {
		e, err := readRecord(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode log for %q: %w", name, err)
		}
		e.Apply(db)
	}
	return db, nil
}

// PersistQueue implements persistence.Driver: the queue's full state
// replaces the row's snapshot and clears its accumulated log, the same
// compaction persistence.Log.PersistQueue performs on file.
func (s *Store) PersistQueue(name string, db queue.Database) error {
	tree, ok := db.(*queue.TreeDatabase)
	if !ok {
		return fmt.Errorf("sqlstore: persist queue %q: requires a *queue.TreeDatabase", name)
	}
	var buf bytes.Buffer
	if err := queue.EncodeTree(&buf, tree); err != nil {
		return fmt.Errorf("sqlstore: encode snapshot for %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	model := &queueModel{Name: name, Snapshot: buf.Bytes(), Log: nil}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (name) DO UPDATE").
		Set("snapshot = EXCLUDED.snapshot, log = EXCLUDED.log, updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: persist queue %q: %w", name, err)
	}
	return nil
}

// PersistEvent implements persistence.LogDriver, appending e to the
// named queue's log blob under s.mu.
func (s *Store) PersistEvent(name string, e *queue.Event) error {
	var buf bytes.Buffer
	if err := writeRecord(&buf, e); err != nil {
		return fmt.Errorf("sqlstore: encode event for %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	existing := new(queueModel)
	err := s.db.NewSelect().Model(existing).Where("name = ?", name).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		model := &queueModel{Name: name, Log: buf.Bytes()}
		_, err = s.db.NewInsert().Model(model).Exec(ctx)
	case err != nil:
		return fmt.Errorf("sqlstore: persist event for %q: %w", name, err)
	default:
		_, err = s.db.NewUpdate().
			Model(existing).
			Set("log = ?", append(existing.Log, buf.Bytes()...)).
			Set("updated_at = current_timestamp").
			Where("name = ?", name).
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: persist event for %q: %w", name, err)
	}
	return nil
}

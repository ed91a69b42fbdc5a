package persistence

import (
	"path/filepath"
	"testing"

	"github.com/spartanq/spartanq/message"
	"github.com/spartanq/spartanq/queue"
)

func buildTree(t *testing.T) *queue.TreeDatabase {
	t.Helper()
	db := queue.NewTreeDatabase()
	m, err := message.NewBuilder().Payload([]byte("Hello, world")).Offset(3).Build()
	if err != nil {
		t.Fatal(err)
	}
	db.Push(m)
	return db
}

func TestSnapshotPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{Path: dir}
	db := buildTree(t)

	if err := s.PersistQueue("orders", db); err != nil {
		t.Fatalf("PersistQueue: %v", err)
	}
	loaded, err := s.LoadQueue("orders")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if loaded.Size() != db.Size() {
		t.Fatalf("Size = %d, want %d", loaded.Size(), db.Size())
	}
}

func TestSnapshotLoadMissingQueueIsEmpty(t *testing.T) {
	s := &Snapshot{Path: t.TempDir()}
	db, err := s.LoadQueue("nonexistent")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if !db.IsEmpty() {
		t.Fatal("expected an empty queue for a missing snapshot file")
	}
}

func TestSnapshotUsesTempFileRename(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{Path: dir}
	if err := s.PersistQueue("orders", buildTree(t)); err != nil {
		t.Fatalf("PersistQueue: %v", err)
	}
	entries, err := filepath.Glob(filepath.Join(dir, "orders.*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, found %v", entries)
	}
}

func TestLogPersistEventsAndReplay(t *testing.T) {
	dir := t.TempDir()
	l := &Log{Path: dir}

	m, err := message.NewBuilder().Payload([]byte("Hello, world")).MaxTries(2).Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := l.PersistEvent("orders", queue.NewPushEvent(0, m)); err != nil {
		t.Fatalf("PersistEvent(Push): %v", err)
	}
	if err := l.PersistEvent("orders", queue.NewPopEvent(1)); err != nil {
		t.Fatalf("PersistEvent(Pop): %v", err)
	}

	db, err := l.LoadQueue("orders")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if db.Size() != 1 {
		t.Fatalf("Size = %d, want 1", db.Size())
	}
}

func TestLogLoadMissingQueueIsEmpty(t *testing.T) {
	l := &Log{Path: t.TempDir()}
	db, err := l.LoadQueue("nonexistent")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if !db.IsEmpty() {
		t.Fatal("expected an empty queue for a missing log file")
	}
}

func TestLogPersistQueueCompacts(t *testing.T) {
	dir := t.TempDir()
	l := &Log{Path: dir}
	db := buildTree(t)

	if err := l.PersistQueue("orders", db); err != nil {
		t.Fatalf("PersistQueue: %v", err)
	}
	reloaded, err := l.LoadQueue("orders")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if reloaded.Size() != db.Size() {
		t.Fatalf("Size = %d, want %d", reloaded.Size(), db.Size())
	}
}

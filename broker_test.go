package spartanq_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spartanq/spartanq"
	"github.com/spartanq/spartanq/config"
	"github.com/spartanq/spartanq/message"
	"github.com/spartanq/spartanq/node"
	"github.com/spartanq/spartanq/persistence"
	sqlstore "github.com/spartanq/spartanq/sql"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPush(t *testing.T, cell *node.Cell, opts ...func(*message.Builder)) *message.Message {
	t.Helper()
	b := message.NewBuilder().Payload([]byte("Hello, world"))
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	cell.Push(m)
	return m
}

func TestGCLoopCollectsExhaustedMessage(t *testing.T) {
	cfg := &config.Config{Queues: []string{"orders"}}
	mgr := node.NewManager(cfg, nil, nil)
	cell, err := mgr.Queue("orders")
	if err != nil {
		t.Fatal(err)
	}
	mustPush(t, cell, func(b *message.Builder) { b.MaxTries(1) })
	cell.Pop()

	loop := spartanq.NewGCLoop(mgr, 20*time.Millisecond, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cell.Size() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("gc loop did not collect the try-exhausted message")
}

func TestGCLoopDoubleStart(t *testing.T) {
	cfg := &config.Config{Queues: []string{"orders"}}
	mgr := node.NewManager(cfg, nil, nil)
	loop := spartanq.NewGCLoop(mgr, time.Hour, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop(time.Second)

	if err := loop.Start(ctx); err != spartanq.ErrDoubleStarted {
		t.Fatalf("second Start = %v, want ErrDoubleStarted", err)
	}
}

func TestPersistenceLoopSnapshots(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Queues:      []string{"orders"},
		Persistence: &config.Persistence{Mode: config.PersistenceSnapshot, Path: dir},
	}
	driver := &persistence.Snapshot{Path: dir}
	mgr := node.NewManager(cfg, driver, nil)
	cell, err := mgr.Queue("orders")
	if err != nil {
		t.Fatal(err)
	}
	mustPush(t, cell)

	loop := spartanq.NewPersistenceLoop(mgr, 20*time.Millisecond, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if db, err := driver.LoadQueue("orders"); err == nil && db.Size() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("persistence loop did not snapshot the queue")
}

// TestBrokerSQLPersistence drives the full broker lifecycle against the
// sql submodule's store: push, graceful stop (which performs the final
// snapshot), then reload from the same database.
func TestBrokerSQLPersistence(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "spartanq.db")
	cfg := &config.Config{
		Queues:           []string{"orders"},
		GCTimer:          1,
		PersistenceTimer: 1,
		Persistence:      &config.Persistence{Mode: config.PersistenceSQL, DSN: dsn},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlstore.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	broker := spartanq.NewBroker(cfg, store, noopLogger())
	if err := broker.Manager.LoadFromFS(); err != nil {
		t.Fatalf("LoadFromFS: %v", err)
	}
	if err := broker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cell, err := broker.Manager.Queue("orders")
	if err != nil {
		t.Fatal(err)
	}
	mustPush(t, cell)

	if err := broker.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := sqlstore.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	db, err := reopened.LoadQueue("orders")
	if err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if db.Size() != 1 {
		t.Fatalf("Size = %d, want 1 after reload", db.Size())
	}
}

// TestBrokerPreparesReplicationAfterLoad guards the ordering between
// LoadFromFS (which rebuilds every cell from persisted state) and
// replication storage installation: cells must carry storage once the
// broker has started, even though LoadFromFS replaced them after
// NewBroker ran.
func TestBrokerPreparesReplicationAfterLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Queues:           []string{"orders"},
		GCTimer:          1,
		PersistenceTimer: 1,
		Persistence:      &config.Persistence{Mode: config.PersistenceSnapshot, Path: dir},
		Replication:      &config.Replication{Role: config.ReplicationRolePrimary},
	}
	driver := &persistence.Snapshot{Path: dir}

	broker := spartanq.NewBroker(cfg, driver, noopLogger())
	if err := broker.Manager.LoadFromFS(); err != nil {
		t.Fatalf("LoadFromFS: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := broker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer broker.Stop(time.Second)

	cell, err := broker.Manager.Queue("orders")
	if err != nil {
		t.Fatal(err)
	}
	if cell.Storage() == nil {
		t.Fatal("expected replication storage installed on every cell after Start")
	}

	mustPush(t, cell)
	if len(cell.Storage().Range(0)) != 1 {
		t.Fatal("expected the Push recorded into replication storage")
	}
}

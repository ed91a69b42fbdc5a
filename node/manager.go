package node

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spartanq/spartanq/config"
	"github.com/spartanq/spartanq/persistence"
	"github.com/spartanq/spartanq/queue"
	"github.com/spartanq/spartanq/replication"
)

// Manager composes a Node with the process configuration and the
// persistence driver it implies. It is the process-wide entry point an
// external HTTP layer (or cmd/spartanq) obtains queue access through.
//
// Manager's lifetime equals the server process. It is constructed once
// at startup; Node's own read-only-after-init contract (see Node) means
// Manager needs no lock of its own.
type Manager struct {
	node   *Node
	config *config.Config
	driver persistence.Driver
	log    *slog.Logger
}

// NewManager builds a Manager over an empty Node for cfg, persisting
// through driver. The caller builds driver to match cfg.Persistence
// (the sql submodule's Store is passed here the same way as the file
// drivers); driver may be nil, which disables persistence.
func NewManager(cfg *config.Config, driver persistence.Driver, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		node:   NewNode(),
		config: cfg,
		driver: driver,
		log:    log,
	}
	for _, name := range cfg.Queues {
		m.node.Add(name)
	}
	m.installLogSinks()
	return m
}

// Node returns the underlying Node.
func (m *Manager) Node() *Node {
	return m.node
}

// Config returns the configuration the manager was built from.
func (m *Manager) Config() *config.Config {
	return m.config
}

// Queue returns the cell registered under name, or a ManagerError
// wrapping ErrQueueNotFound if no such queue exists.
func (m *Manager) Queue(name string) (*Cell, error) {
	cell := m.node.Queue(name)
	if cell == nil {
		return nil, &ManagerError{Queue: name}
	}
	return cell, nil
}

// LoadFromFS reconstructs every configured queue from whatever the
// persistence driver has stored for it, replacing the empty queues
// NewManager initialized. It is fatal to the startup sequence if any
// single queue fails to load, per the error-handling design: a
// corrupted persisted queue must not silently start empty.
func (m *Manager) LoadFromFS() error {
	if m.driver == nil {
		return nil
	}
	for _, name := range m.config.Queues {
		db, err := m.driver.LoadQueue(name)
		if err != nil {
			return fmt.Errorf("node: load queue %q: %w", name, err)
		}
		m.node.AddDB(name, db)
	}
	m.installLogSinks()
	return nil
}

// installLogSinks wires Cell.SetLogSink on every queue when the
// configured persistence mode is Log, so every mutation is appended to
// its queue's log file as it happens, independent of replication.
func (m *Manager) installLogSinks() {
	if m.config.Persistence == nil || m.config.Persistence.Mode != config.PersistenceLog {
		return
	}
	logDriver, ok := m.driver.(persistence.LogDriver)
	if !ok {
		return
	}
	m.node.Iter(func(name string, cell *Cell) {
		n := name
		cell.SetLogSink(func(e *queue.Event) {
			if err := logDriver.PersistEvent(n, e); err != nil {
				m.log.Error("persist event failed", "queue", n, "kind", e.Kind, "err", err)
			}
		})
	})
}

// Snapshot concurrently persists every queue's full current state. It
// is a no-op unless the configured persistence mode performs
// full-state writes (Snapshot or SQL); Log mode instead persists
// incrementally through the log sink installLogSinks puts on every
// Cell.
//
// Errors are collected per queue and joined; callers (the persistence
// loop) log and continue rather than treat this as fatal.
func (m *Manager) Snapshot() error {
	if m.config.Persistence == nil || m.config.Persistence.Mode == config.PersistenceLog {
		return nil
	}
	if m.driver == nil {
		return nil
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	m.node.Iter(func(name string, cell *Cell) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var persistErr error
			cell.withDatabase(func(db queue.Database) {
				persistErr = m.driver.PersistQueue(name, db)
			})
			if persistErr != nil {
				mu.Lock()
				errs = append(errs, persistErr)
				mu.Unlock()
			}
		}()
	})
	wg.Wait()
	return errors.Join(errs...)
}

// Log appends a single event to name's persisted log, if the
// configured persistence mode is Log. It is a no-op otherwise.
func (m *Manager) Log(name string, e *queue.Event) error {
	if m.config.Persistence == nil || m.config.Persistence.Mode != config.PersistenceLog {
		return nil
	}
	logDriver, ok := m.driver.(persistence.LogDriver)
	if !ok {
		return nil
	}
	return logDriver.PersistEvent(name, e)
}

// PrepareReplication installs replication storage on every queue that
// doesn't already carry one satisfying filter, using replace to build
// a fresh one. Used once at startup to turn every cell into either a
// primary-side event recorder or a replica-side applied-index tracker.
func (m *Manager) PrepareReplication(filter func(*replication.Storage) bool, replace func() *replication.Storage) {
	m.node.Iter(func(_ string, cell *Cell) {
		cell.PrepareReplication(filter, replace)
	})
}

// Names returns every configured queue name. It satisfies
// replication.QueueSource.
func (m *Manager) Names() []string {
	return m.node.Names()
}

// ReplicationCell returns the named queue's Cell as a
// replication.Cell, or false if no such queue is configured. It
// satisfies replication.QueueSource.
func (m *Manager) ReplicationCell(name string) (replication.Cell, bool) {
	cell := m.node.Queue(name)
	if cell == nil {
		return nil, false
	}
	return cell, true
}

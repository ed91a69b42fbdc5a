// Package node implements the process-wide collection of named queues
// (Node), the replicated wrapper each queue is held behind (Cell), and
// the manager that ties queues to configuration and persistence
// (Manager).
package node

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spartanq/spartanq/message"
	"github.com/spartanq/spartanq/queue"
	"github.com/spartanq/spartanq/replication"
)

// Cell wraps a queue engine and an optional replication storage behind
// a single exclusive lock. It is the composition boundary the design
// calls for: Cell forwards every call to the inner Database, and, if
// replication storage is installed, records the corresponding Event
// first, under the same lock, so events are appended in exactly the
// order their mutations take effect. Cell does not know how the event
// is used downstream (log persistence, replica shipping); it only
// records it.
//
// Peek and Size are read-only and never emit events.
type Cell struct {
	mu sync.Mutex
	db queue.Database

	storageMu sync.RWMutex
	storage   *replication.Storage

	logSink func(*queue.Event)
}

// NewCell wraps db with no replication storage installed.
func NewCell(db queue.Database) *Cell {
	return &Cell{db: db}
}

func now() int64 {
	return time.Now().Unix()
}

func (c *Cell) record(e *queue.Event) {
	c.storageMu.RLock()
	storage := c.storage
	sink := c.logSink
	c.storageMu.RUnlock()
	if storage != nil {
		storage.Append(e)
	}
	if sink != nil {
		sink(e)
	}
}

// SetLogSink installs the function invoked with every mutating event,
// under the same lock the mutation itself runs under. Used to wire
// persistence.Log's append-on-every-mutation discipline in, separately
// from (and compatibly with) replication storage.
func (c *Cell) SetLogSink(sink func(*queue.Event)) {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	c.logSink = sink
}

// Push enqueues m, recording a Push event if replication is enabled.
func (c *Cell) Push(m *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(queue.NewPushEvent(now(), m))
	c.db.Push(m)
}

// Peek returns the next obtainable message without reserving it.
func (c *Cell) Peek() *message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Peek(now())
}

// Pop reserves and returns the next obtainable message, recording a Pop
// event if replication is enabled.
func (c *Cell) Pop() *message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := now()
	c.record(queue.NewPopEvent(n))
	return c.db.Pop(n)
}

// Requeue releases id back to Available, recording a Requeue event if
// replication is enabled.
func (c *Cell) Requeue(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(queue.NewRequeueEvent(now(), id))
	return c.db.Requeue(id)
}

// Delete removes id, recording a Delete event if replication is enabled.
func (c *Cell) Delete(id uuid.UUID) *message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(queue.NewDeleteEvent(now(), id))
	return c.db.Delete(id)
}

// Gc sweeps expired and try-exhausted messages, recording a Gc event if
// replication is enabled.
func (c *Cell) Gc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := now()
	c.record(queue.NewGcEvent(n))
	c.db.Gc(n)
}

// Clear empties the queue, recording a Clear event if replication is
// enabled.
func (c *Cell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(queue.NewClearEvent(now()))
	c.db.Clear()
}

// Size returns the number of stored messages.
func (c *Cell) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Size()
}

// IsEmpty reports whether Size is zero.
func (c *Cell) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.IsEmpty()
}

// withDatabase runs f against the inner database under the cell lock,
// so persistence can serialize a consistent state without racing other
// Cell operations. Manager.Snapshot holds the lock for the duration of
// the encode.
func (c *Cell) withDatabase(f func(queue.Database)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(c.db)
}

// ApplyEvent applies e directly to the cell's underlying queue engine,
// under the cell's lock, bypassing replication storage: a replica
// applying a shipped event must not re-record it into its own
// Storage (which, on a replica, tracks the last-applied index rather
// than a re-shippable log; see replication.Storage.SetLastApplied).
// If a persistence log sink is installed, the applied event is still
// logged, so Log-mode persistence stays consistent with replica state.
func (c *Cell) ApplyEvent(e *queue.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Apply(c.db)
	c.storageMu.RLock()
	sink := c.logSink
	c.storageMu.RUnlock()
	if sink != nil {
		sink(e)
	}
}

// Storage returns the cell's current replication storage, or nil if
// replication is not enabled for this queue.
func (c *Cell) Storage() *replication.Storage {
	c.storageMu.RLock()
	defer c.storageMu.RUnlock()
	return c.storage
}

// PrepareReplication inspects the cell's current replication storage:
// if it is absent, or present but filter rejects it, it is replaced
// with the storage produced by replace. Used at startup to install a
// primary-side event log or a replica-side applied-index tracker
// without disturbing an already-suitable storage on a later call.
func (c *Cell) PrepareReplication(filter func(*replication.Storage) bool, replace func() *replication.Storage) {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if c.storage == nil || !filter(c.storage) {
		c.storage = replace()
	}
}

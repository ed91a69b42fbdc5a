// Package queue implements the ordered, status-aware message store at
// the core of a queue: push, peek, pop, requeue, delete, gc, and the
// binary encoding used to snapshot or replay it.
//
// Event captures a single mutation for replay or replication shipping;
// Apply replays an Event against any Database implementation using the
// event's own recorded timestamp rather than wall-clock time, which is
// what makes log replay and replica application deterministic.
//
// EncodeTree/DecodeTree and EncodeEvent/DecodeEvent implement the
// fixed-layout binary format persistence and replication both build on.
package queue

import (
	"github.com/google/uuid"
	"github.com/spartanq/spartanq/message"
)

// Database is the pluggable storage contract a queue cell composes with
// optional replication. TreeDatabase is the only implementation in this
// module; the interface keeps the engine swappable.
//
// All operations assume the caller already holds exclusive access; none
// of them are safe for concurrent use on their own.
type Database interface {
	// Push assigns an insertion sequence to m and inserts it into both
	// the message store and the secondary index. It never fails.
	Push(m *message.Message)

	// Peek returns the obtainable message with the smallest
	// (sort key, insertion sequence), or nil if none qualifies.
	Peek(now int64) *message.Message

	// Pop is Peek followed by reserving the returned message. It
	// returns nil if no obtainable message exists.
	Pop(now int64) *message.Message

	// Requeue releases an InTransit message with remaining tries back
	// to Available. It reports whether the transition happened.
	Requeue(id uuid.UUID) bool

	// Delete removes a message from both structures and returns it, or
	// nil if id is not present.
	Delete(id uuid.UUID) *message.Message

	// Gc removes every message that is a GC candidate at the given
	// instant.
	Gc(now int64)

	// Size returns the number of stored messages.
	Size() int

	// IsEmpty reports whether Size is zero.
	IsEmpty() bool

	// Clear empties both the message store and the secondary index.
	Clear()

	// Position scans the secondary index in ascending order and
	// returns the id of the first message matching predicate.
	Position(predicate func(*message.Message) bool) (uuid.UUID, bool)
}

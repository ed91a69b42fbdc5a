package queue

import (
	"github.com/google/uuid"
	"github.com/spartanq/spartanq/message"
)

// Kind tags the variant of an Event, written as a single discriminant
// byte in both the persisted log and the replication wire format.
type Kind uint8

const (
	Push Kind = iota
	Pop
	Requeue
	Delete
	Gc
	Clear
)

func (k Kind) String() string {
	switch k {
	case Push:
		return "Push"
	case Pop:
		return "Pop"
	case Requeue:
		return "Requeue"
	case Delete:
		return "Delete"
	case Gc:
		return "Gc"
	case Clear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// Event is an append-only record of a single queue mutation.
//
// At is the event-time (epoch seconds) the mutation occurred, stamped
// under the same lock that performed it. Replay and replica apply use
// At instead of wall-clock time so that Pop's reservation timestamp and
// Gc's expiry decisions are reproduced exactly rather than recomputed
// against whatever instant replay happens to run at.
type Event struct {
	Kind Kind
	At   int64

	// Message is set only for Push.
	Message *message.Message

	// Id is set only for Requeue and Delete.
	Id uuid.UUID
}

// NewPushEvent returns a Push event capturing a clone of m, so that
// later mutation of the live message (e.g. by Pop) does not retroactively
// change what was recorded.
func NewPushEvent(at int64, m *message.Message) *Event {
	return &Event{Kind: Push, At: at, Message: m.Clone()}
}

// NewPopEvent returns a Pop event.
func NewPopEvent(at int64) *Event {
	return &Event{Kind: Pop, At: at}
}

// NewRequeueEvent returns a Requeue event for id.
func NewRequeueEvent(at int64, id uuid.UUID) *Event {
	return &Event{Kind: Requeue, At: at, Id: id}
}

// NewDeleteEvent returns a Delete event for id.
func NewDeleteEvent(at int64, id uuid.UUID) *Event {
	return &Event{Kind: Delete, At: at, Id: id}
}

// NewGcEvent returns a Gc event.
func NewGcEvent(at int64) *Event {
	return &Event{Kind: Gc, At: at}
}

// NewClearEvent returns a Clear event.
func NewClearEvent(at int64) *Event {
	return &Event{Kind: Clear, At: at}
}

// Apply replays e against db using e.At as "now", the way both log
// replay and replica application do. Push bypasses id (re)assignment by
// construction: the message already carries the id recorded at capture
// time. Requeue and Delete are no-ops if the id is absent, matching
// replica apply semantics; Pop and Gc reuse the same Peek/Reserve and
// candidate-sweep logic the live engine uses, driven by e.At rather
// than time.Now.
func (e *Event) Apply(db Database) {
	switch e.Kind {
	case Push:
		db.Push(e.Message.Clone())
	case Pop:
		db.Pop(e.At)
	case Requeue:
		db.Requeue(e.Id)
	case Delete:
		db.Delete(e.Id)
	case Gc:
		db.Gc(e.At)
	case Clear:
		db.Clear()
	}
}

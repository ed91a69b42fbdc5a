package queue

import (
	"sort"

	"github.com/google/uuid"
	"github.com/spartanq/spartanq/message"
)

// entry pairs a stored message with the insertion sequence it was
// pushed with.
type entry struct {
	seq uint64
	msg *message.Message
}

// indexKey is the secondary index's sort key: offset first, insertion
// sequence second, giving a stable FIFO tiebreak for equal offsets.
//
// Delay is deliberately excluded from the sort key; obtainability is
// enforced purely by the Obtainable predicate during Peek/Pop scans.
// Both strategies are defensible (see the design notes on sort-key
// composition); this one keeps the index stable regardless of when a
// delayed message's deadline is checked, at the cost of occasionally
// scanning past delayed-but-early-offset messages during Peek.
type indexKey struct {
	offset int32
	seq    uint64
}

func less(a, b indexKey) bool {
	if a.offset != b.offset {
		return a.offset < b.offset
	}
	return a.seq < b.seq
}

type indexEntry struct {
	key indexKey
	id  uuid.UUID
}

// TreeDatabase is an in-memory ordered message store: a map from id to
// (insertion sequence, message) plus a secondary index sorted by
// (offset, insertion sequence), kept as a slice searched and spliced
// with sort.Search. A real tree map would give the same asymptotics;
// the standard library has none, and nothing in the broader dependency
// set supplies one, so the index is a sorted slice (see design notes).
type TreeDatabase struct {
	nextSeq uint64
	store   map[uuid.UUID]entry
	index   []indexEntry
}

// NewTreeDatabase returns an empty TreeDatabase.
func NewTreeDatabase() *TreeDatabase {
	return &TreeDatabase{
		store: make(map[uuid.UUID]entry),
	}
}

func (t *TreeDatabase) searchInsert(key indexKey) int {
	return sort.Search(len(t.index), func(i int) bool {
		return !less(t.index[i].key, key)
	})
}

func (t *TreeDatabase) insertIndex(key indexKey, id uuid.UUID) {
	i := t.searchInsert(key)
	t.index = append(t.index, indexEntry{})
	copy(t.index[i+1:], t.index[i:])
	t.index[i] = indexEntry{key: key, id: id}
}

func (t *TreeDatabase) removeIndex(key indexKey) {
	i := t.searchInsert(key)
	for ; i < len(t.index); i++ {
		if t.index[i].key == key {
			t.index = append(t.index[:i], t.index[i+1:]...)
			return
		}
	}
}

// pushRaw inserts m using an explicit insertion sequence, bypassing
// sequence assignment. Used by snapshot load (DecodeTree), where the
// sequence must be preserved exactly as persisted rather than
// reassigned.
func (t *TreeDatabase) pushRaw(seq uint64, m *message.Message) {
	t.store[m.Id] = entry{seq: seq, msg: m}
	t.insertIndex(indexKey{offset: m.Offset, seq: seq}, m.Id)
	if seq >= t.nextSeq {
		t.nextSeq = seq + 1
	}
}

// Push implements Database.
func (t *TreeDatabase) Push(m *message.Message) {
	seq := t.nextSeq
	t.nextSeq++
	t.store[m.Id] = entry{seq: seq, msg: m}
	t.insertIndex(indexKey{offset: m.Offset, seq: seq}, m.Id)
}

// Position implements Database.
func (t *TreeDatabase) Position(predicate func(*message.Message) bool) (uuid.UUID, bool) {
	for _, ie := range t.index {
		e, ok := t.store[ie.id]
		if !ok {
			continue
		}
		if predicate(e.msg) {
			return ie.id, true
		}
	}
	return uuid.UUID{}, false
}

// Peek implements Database.
func (t *TreeDatabase) Peek(now int64) *message.Message {
	id, ok := t.Position(func(m *message.Message) bool {
		return m.Obtainable(now)
	})
	if !ok {
		return nil
	}
	return t.store[id].msg
}

// Pop implements Database.
func (t *TreeDatabase) Pop(now int64) *message.Message {
	m := t.Peek(now)
	if m == nil {
		return nil
	}
	m.Reserve(now)
	return m
}

// Requeue implements Database.
func (t *TreeDatabase) Requeue(id uuid.UUID) bool {
	e, ok := t.store[id]
	if !ok {
		return false
	}
	return e.msg.Release()
}

// Delete implements Database.
func (t *TreeDatabase) Delete(id uuid.UUID) *message.Message {
	e, ok := t.store[id]
	if !ok {
		return nil
	}
	delete(t.store, id)
	t.removeIndex(indexKey{offset: e.msg.Offset, seq: e.seq})
	return e.msg
}

// Gc implements Database.
func (t *TreeDatabase) Gc(now int64) {
	for id, e := range t.store {
		if e.msg.IsGCCandidate(now) {
			delete(t.store, id)
			t.removeIndex(indexKey{offset: e.msg.Offset, seq: e.seq})
		}
	}
}

// Size implements Database.
func (t *TreeDatabase) Size() int {
	return len(t.store)
}

// IsEmpty implements Database.
func (t *TreeDatabase) IsEmpty() bool {
	return len(t.store) == 0
}

// Clear implements Database.
func (t *TreeDatabase) Clear() {
	t.store = make(map[uuid.UUID]entry)
	t.index = nil
}

// Messages returns every stored message in current index order. Used
// by log compaction to rewrite a queue's log as a fresh sequence of
// Push events.
func (t *TreeDatabase) Messages() []*message.Message {
	ret := make([]*message.Message, 0, len(t.index))
	for _, ie := range t.index {
		if e, ok := t.store[ie.id]; ok {
			ret = append(ret, e.msg)
		}
	}
	return ret
}

var _ Database = (*TreeDatabase)(nil)

package replication

import (
	"sort"
	"sync"

	"github.com/spartanq/spartanq/queue"
)

// IndexedEvent pairs a Storage-assigned index with the Event recorded
// at that index, the shape SendRange ships across the wire.
type IndexedEvent struct {
	Index uint64
	Event *queue.Event
}

// Storage is a per-queue append-only log of events, used by the primary
// side of replication to record mutations and to serve catch-up range
// requests. NextIndex is initialized to 1 and strictly increases;
// GcThreshold tracks how far the log has been compacted.
type Storage struct {
	mu          sync.Mutex
	nextIndex   uint64
	gcThreshold uint64
	log         map[uint64]*queue.Event
}

// NewStorage returns an empty Storage with NextIndex starting at 1.
func NewStorage() *Storage {
	return &Storage{
		nextIndex: 1,
		log:       make(map[uint64]*queue.Event),
	}
}

// Append records e at the next available index and returns the index
// assigned.
func (s *Storage) Append(e *queue.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.nextIndex
	s.log[idx] = e
	s.nextIndex++
	return idx
}

// Range returns every entry with index strictly greater than after, in
// ascending index order.
func (s *Storage) Range(after uint64) []IndexedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]IndexedEvent, 0, len(s.log))
	for idx, e := range s.log {
		if idx > after {
			ret = append(ret, IndexedEvent{Index: idx, Event: e})
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Index < ret[j].Index })
	return ret
}

// Advance moves GcThreshold forward to threshold (a no-op if threshold
// is not greater than the current value) and physically drops every
// entry at or below it, enabling log compaction after a successful
// RecvRange ack.
func (s *Storage) Advance(threshold uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threshold <= s.gcThreshold {
		return
	}
	s.gcThreshold = threshold
	for idx := range s.log {
		if idx <= threshold {
			delete(s.log, idx)
		}
	}
}

// SetLastApplied advances the last-applied-index marker to idx, if idx
// is not already covered. Used on a replica, where Storage tracks how
// far the local queue has caught up rather than holding a re-shippable
// log: unlike Append, it does not store an event, it only moves the
// index watermark LastIndex (and therefore the index reported in
// RecvIndex) forward.
func (s *Storage) SetLastApplied(idx uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx+1 > s.nextIndex {
		s.nextIndex = idx + 1
	}
}

// LastIndex returns the highest index ever assigned (by Append or
// SetLastApplied), or 0 if none has been. Compaction by Advance does not
// lower it.
func (s *Storage) LastIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextIndex == 1 {
		return 0
	}
	return s.nextIndex - 1
}

// GcThreshold returns the current compaction watermark.
func (s *Storage) GcThreshold() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gcThreshold
}

package message

import (
	"github.com/google/uuid"
)

// Message represents a single unit of data stored in a queue.
//
// A Message is immutable in its identifying fields (Id, Payload, Offset,
// MaxTries, Timeout, Delay) once built; Status, Tries and ReservedAt are
// the mutable dispatch state advanced by Reserve and Release.
//
// Metadata is optional and lazily initialized. It may be nil if no
// metadata has been set.
type Message struct {
	Id       uuid.UUID
	Metadata map[string]any
	Payload  []byte

	Offset   int32
	MaxTries uint32
	Timeout  uint32 // seconds

	// Delay is an absolute epoch-second deadline before which the
	// message is not obtainable. Zero means no delay.
	Delay int64

	Status     Status
	Tries      uint32
	ReservedAt int64 // epoch seconds, valid only while Status == InTransit
}

// Get returns the metadata value associated with the given key.
//
// If the key does not exist or Metadata is nil, Get returns nil.
func (m *Message) Get(key string) any {
	ret, ok := m.Metadata[key]
	if !ok {
		return nil
	}
	return ret
}

// Set stores the given key-value pair in the message metadata.
//
// If Metadata is nil, it is initialized automatically.
func (m *Message) Set(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Get retrieves a metadata value associated with the given key and
// attempts to cast it to type T.
func Get[T any](m *Message, key string) (T, bool) {
	raw, ok := m.Metadata[key]
	if !ok {
		var t T
		return t, false
	}
	ret, ok := raw.(T)
	if !ok {
		var t T
		return t, false
	}
	return ret, true
}

// Set stores the given key-value pair in the message metadata
// using a type-safe generic helper.
func Set[T any](m *Message, key string, value T) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// HasTries reports whether the message may still be reserved.
func (m *Message) HasTries() bool {
	return m.Tries < m.MaxTries
}

// Obtainable reports whether the message may be returned by Peek/Pop
// at the given instant: it must be Available and, if delayed, its
// delay must have elapsed.
func (m *Message) Obtainable(now int64) bool {
	if m.Status != Available {
		return false
	}
	return m.Delay == 0 || now >= m.Delay
}

// Expired reports whether an InTransit message's visibility timeout
// has elapsed at the given instant.
func (m *Message) Expired(now int64) bool {
	return m.Status == InTransit && now >= m.ReservedAt+int64(m.Timeout)
}

// IsGCCandidate reports whether the message should be dropped by the
// next Gc pass: it is either InTransit and expired, or it has run out
// of tries while not Available (i.e. it is reserved on its last try,
// whether or not its timeout has elapsed).
func (m *Message) IsGCCandidate(now int64) bool {
	if m.Expired(now) {
		return true
	}
	return !m.HasTries() && m.Status != Available
}

// Reserve transitions the message to InTransit, incrementing Tries and
// stamping ReservedAt. Callers must have already established the
// message was Obtainable.
func (m *Message) Reserve(now int64) {
	m.Status = InTransit
	m.Tries++
	m.ReservedAt = now
}

// Release transitions an InTransit message back to Available, provided
// it still HasTries. It reports whether the transition happened.
func (m *Message) Release() bool {
	if m.Status != InTransit || !m.HasTries() {
		return false
	}
	m.Status = Available
	return true
}

// Clone returns a deep copy of the message, safe to mutate independently
// of the original (used when recording a Push event and when shipping a
// message to a replica).
func (m *Message) Clone() *Message {
	ret := *m
	if m.Payload != nil {
		ret.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Metadata != nil {
		ret.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			ret.Metadata[k] = v
		}
	}
	return &ret
}

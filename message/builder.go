package message

import (
	"errors"

	"github.com/google/uuid"
)

// ErrBodyNotProvided is returned by Builder.Build when no payload was set.
var ErrBodyNotProvided = errors.New("message: no body provided for builder")

// Builder composes a Message using sensible defaults (MaxTries=1,
// Timeout=30s, no delay, Offset=0), matching the construction rules a
// queue's Push operation assumes.
//
// A Builder is used once; Build resets nothing, so a fresh Builder
// should be created per message.
type Builder struct {
	payload  []byte
	offset   int32
	maxTries uint32
	timeout  uint32
	delay    int64
	metadata map[string]any
}

// NewBuilder returns a Builder pre-populated with the default fields.
func NewBuilder() *Builder {
	return &Builder{
		maxTries: 1,
		timeout:  30,
	}
}

// Payload sets the message body. A nil or empty payload causes Build to
// fail with ErrBodyNotProvided.
func (b *Builder) Payload(payload []byte) *Builder {
	b.payload = payload
	return b
}

// Offset sets the sort-order base for the message.
func (b *Builder) Offset(offset int32) *Builder {
	b.offset = offset
	return b
}

// MaxTries sets the maximum number of reservations before GC drops the
// message.
func (b *Builder) MaxTries(maxTries uint32) *Builder {
	b.maxTries = maxTries
	return b
}

// Timeout sets the visibility timeout, in seconds, applied on Reserve.
func (b *Builder) Timeout(timeout uint32) *Builder {
	b.timeout = timeout
	return b
}

// Delay sets an absolute epoch-second deadline before which the message
// is not obtainable.
func (b *Builder) Delay(delay int64) *Builder {
	b.delay = delay
	return b
}

// Metadata attaches a single metadata key-value pair to the built message.
func (b *Builder) Metadata(key string, value any) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// Build composes the final Message, assigning a fresh random id.
//
// Build returns ErrBodyNotProvided if Payload was never called with a
// non-empty slice.
func (b *Builder) Build() (*Message, error) {
	if len(b.payload) == 0 {
		return nil, ErrBodyNotProvided
	}
	return &Message{
		Id:       uuid.New(),
		Metadata: b.metadata,
		Payload:  b.payload,
		Offset:   b.offset,
		MaxTries: b.maxTries,
		Timeout:  b.timeout,
		Delay:    b.delay,
		Status:   Available,
	}, nil
}

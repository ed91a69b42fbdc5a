// Package message defines the message value stored and dispatched by a
// queue: an identifier, an opaque payload, optional metadata, and the
// scheduling/dispatch fields (offset, max tries, timeout, delay, status,
// tries) a queue engine needs to decide obtainability and garbage
// collection.
//
// Unlike a transport-only message, this type carries its own dispatch
// state inline: there is no separate delivery-state type layered on
// top. Builder composes a Message with defaulted scheduling fields
// (MaxTries=1, Timeout=30s, no delay); Reserve/Release/IsGCCandidate
// implement the state machine a queue engine drives.
//
// A Message is immutable in its identifying fields once built; only
// Status, Tries and ReservedAt change, and only under the owning
// queue's exclusive lock.
package message

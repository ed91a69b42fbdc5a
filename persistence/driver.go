package persistence

import "github.com/spartanq/spartanq/queue"

// Driver loads and persists a single queue's database. Snapshot and Log
// are the two modes named by configuration; sqlstore (in the sql
// submodule) implements the same contract as a third, storage-backed
// option.
type Driver interface {
	// LoadQueue reconstructs the named queue's database from whatever
	// this driver has persisted for it. A queue with no persisted state
	// yet loads as an empty database, not an error.
	LoadQueue(name string) (queue.Database, error)

	// PersistQueue writes db's full current state for name, replacing
	// whatever was previously persisted.
	PersistQueue(name string, db queue.Database) error
}

// LogDriver additionally supports appending single events, used by the
// Replicated Wrapper's log-mode write path instead of a full rewrite
// per mutation.
type LogDriver interface {
	Driver

	// PersistEvent appends a single event to the named queue's log.
	PersistEvent(name string, e *queue.Event) error
}

package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// queueModel stores one row per queue: its full encoded tree state plus
// an append-only encoded event log, mirroring the two persistence
// disciplines package persistence implements as files. A single table
// keeps both so Driver and LogDriver share one schema.
type queueModel struct {
	bun.BaseModel `bun:"table:queues"`

	Name      string    `bun:"name,pk"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	// Snapshot holds the last full queue.EncodeTree write, nil until the
	// first PersistQueue call.
	Snapshot []byte `bun:"snapshot,type:blob"`

	// Log holds every queue.EncodeEvent record appended since the last
	// snapshot, concatenated length-prefixed the same way persistence.Log
	// frames its on-disk file.
	Log []byte `bun:"log,type:blob"`
}

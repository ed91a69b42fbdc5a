package replication

import "github.com/spartanq/spartanq/queue"

// Cell is the minimal per-queue surface a replication driver needs:
// the primary side reads Storage to find what to ship; the replica
// side applies shipped events directly to the underlying queue engine.
// node.Cell satisfies this without node importing the driver code in
// this package (node already imports replication for Storage itself).
type Cell interface {
	Storage() *Storage
	ApplyEvent(e *queue.Event)
}

// QueueSource is the view of the broker's queues a replication driver
// needs. *node.Manager satisfies it.
type QueueSource interface {
	// Names returns every configured queue name.
	Names() []string

	// ReplicationCell returns the named queue's Cell, or false if no
	// such queue is configured.
	ReplicationCell(name string) (Cell, bool)
}

package spartanq

import "github.com/spartanq/spartanq/internal"

// Lifecycle errors returned by GCLoop.Start/Stop and
// PersistenceLoop.Start/Stop. replication.Primary shares the same
// sentinels from the internal package directly.
var (
	ErrDoubleStarted = internal.ErrDoubleStarted
	ErrDoubleStopped = internal.ErrDoubleStopped
	ErrStopTimeout   = internal.ErrStopTimeout
)

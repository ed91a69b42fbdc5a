package spartanq

import (
	"context"
	"log/slog"
	"time"

	"github.com/spartanq/spartanq/internal"
	"github.com/spartanq/spartanq/node"
)

// PersistenceLoop invokes Manager.Snapshot every interval. It is a
// no-op in Log mode (events are already persisted incrementally by the
// log sink Manager installs on every cell) and errors are logged,
// never fatal: a failed snapshot write does not stop the loop or the
// process.
type PersistenceLoop struct {
	lc internal.LCBase

	manager  *node.Manager
	task     internal.TimerTask
	interval time.Duration
	log      *slog.Logger
}

// NewPersistenceLoop returns a PersistenceLoop that snapshots manager
// every interval.
func NewPersistenceLoop(manager *node.Manager, interval time.Duration, log *slog.Logger) *PersistenceLoop {
	return &PersistenceLoop{
		manager:  manager,
		interval: interval,
		log:      log,
	}
}

func (p *PersistenceLoop) snapshot(_ context.Context) {
	if err := p.manager.Snapshot(); err != nil {
		p.log.Error("snapshot failed", "err", err)
	}
}

// Start begins the periodic snapshot. Start returns ErrDoubleStarted if
// the loop is already running.
func (p *PersistenceLoop) Start(ctx context.Context) error {
	if err := p.lc.TryStart(); err != nil {
		return err
	}
	p.task.Start(ctx, p.snapshot, p.interval)
	return nil
}

// Stop terminates the loop, waiting up to timeout for an in-flight
// snapshot to finish. Stop returns ErrDoubleStopped if the loop is not
// running.
func (p *PersistenceLoop) Stop(timeout time.Duration) error {
	return p.lc.TryStop(timeout, p.task.Stop)
}

package spartanq

import (
	"context"
	"log/slog"
	"time"

	"github.com/spartanq/spartanq/internal"
	"github.com/spartanq/spartanq/node"
)

// GCLoop periodically sweeps every queue for expired in-transit and
// try-exhausted messages: one task per queue, no ordering between
// queues, which is the concurrency discipline internal.WorkerPool
// already provides, so GCLoop is built on it directly rather than
// spinning its own goroutine per tick.
//
// GCLoop has a strict start-once/stop-once lifecycle.
type GCLoop struct {
	lc internal.LCBase

	manager  *node.Manager
	task     internal.TimerTask
	pool     *internal.WorkerPool[*node.Cell]
	interval time.Duration
	log      *slog.Logger
}

// NewGCLoop returns a GCLoop that sweeps every queue in manager every
// interval.
func NewGCLoop(manager *node.Manager, interval time.Duration, log *slog.Logger) *GCLoop {
	concurrency := len(manager.Node().Names())
	if concurrency < 1 {
		concurrency = 1
	}
	return &GCLoop{
		manager:  manager,
		pool:     internal.NewWorkerPool[*node.Cell](concurrency, concurrency, log),
		interval: interval,
		log:      log,
	}
}

func (g *GCLoop) dispatch(_ context.Context) {
	g.manager.Node().Iter(func(name string, cell *node.Cell) {
		if !g.pool.Push(cell) {
			g.log.Debug("gc dispatch interrupted by shutdown", "queue", name)
		}
	})
}

func (g *GCLoop) sweep(_ context.Context, cell *node.Cell) {
	cell.Gc()
}

// Start begins the periodic sweep. Start returns ErrDoubleStarted if
// the loop is already running.
func (g *GCLoop) Start(ctx context.Context) error {
	if err := g.lc.TryStart(); err != nil {
		return err
	}
	g.pool.Start(ctx, g.sweep)
	g.task.Start(ctx, g.dispatch, g.interval)
	return nil
}

func (g *GCLoop) doStop() internal.DoneChan {
	first := g.task.Stop()
	second := g.pool.Stop()
	return internal.Combine(first, second)
}

// Stop terminates the loop, waiting up to timeout for in-flight sweeps
// to finish. Stop returns ErrDoubleStopped if the loop is not running.
func (g *GCLoop) Stop(timeout time.Duration) error {
	return g.lc.TryStop(timeout, g.doStop)
}

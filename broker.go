package spartanq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spartanq/spartanq/config"
	"github.com/spartanq/spartanq/node"
	"github.com/spartanq/spartanq/persistence"
	"github.com/spartanq/spartanq/replication"
)

// replicationDriver is the subset of Primary and Replica's lifecycle
// Broker drives; whichever one cfg.Replication.Role selects.
type replicationDriver interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Broker is the top-level process: a Manager holding every configured
// queue, the background GC and persistence loops, and, if configured,
// one side of log-shipping replication.
//
// Broker's lifecycle mirrors its components': Start is called once at
// process startup, after LoadFromFS; Stop is called once, from the
// process's graceful-shutdown signal handler.
type Broker struct {
	Manager *node.Manager

	gc          *GCLoop
	persistence *PersistenceLoop
	replication replicationDriver

	log *slog.Logger
}

// NewDriver selects the persistence.Driver implied by cfg.Persistence,
// or nil if persistence is disabled. SQL mode is not constructed here:
// the sql submodule's sqlstore.Open returns a driver the caller passes
// to NewBroker directly, since it requires opening a database
// connection the config package does not own.
func NewDriver(cfg *config.Config) (persistence.Driver, error) {
	if cfg.Persistence == nil {
		return nil, nil
	}
	switch cfg.Persistence.Mode {
	case config.PersistenceDisabled:
		return nil, nil
	case config.PersistenceSnapshot:
		return &persistence.Snapshot{Path: cfg.Persistence.Path}, nil
	case config.PersistenceLog:
		return &persistence.Log{Path: cfg.Persistence.Path}, nil
	case config.PersistenceSQL:
		return nil, fmt.Errorf("spartanq: SQL persistence requires a driver built by the sql submodule")
	default:
		return nil, fmt.Errorf("spartanq: unknown persistence mode %v", cfg.Persistence.Mode)
	}
}

// NewBroker builds a Broker for cfg, using driver for persistence
// (nil disables it) and installing whichever replication role
// cfg.Replication names. Callers typically follow NewBroker with
// Manager.LoadFromFS before Start.
func NewBroker(cfg *config.Config, driver persistence.Driver, log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	manager := node.NewManager(cfg, driver, log)

	b := &Broker{
		Manager:     manager,
		gc:          NewGCLoop(manager, time.Duration(cfg.GCTimer)*time.Second, log),
		persistence: NewPersistenceLoop(manager, time.Duration(cfg.PersistenceTimer)*time.Second, log),
		log:         log,
	}

	if cfg.Replication != nil {
		switch cfg.Replication.Role {
		case config.ReplicationRolePrimary:
			b.replication = replication.NewPrimary(manager, cfg.Replication.Destination, 5*time.Second, log)
		case config.ReplicationRoleReplica:
			b.replication = replication.NewReplica(manager, cfg.Replication.Bind, log)
		}
	}

	return b
}

// Start begins every background loop: GC, persistence and, if
// configured, replication. Replication storage is installed here, not
// in NewBroker, because LoadFromFS rebuilds every cell from persisted
// state between construction and Start; preparing earlier would leave
// the reloaded cells without storage.
func (b *Broker) Start(ctx context.Context) error {
	if b.replication != nil {
		b.Manager.PrepareReplication(
			func(*replication.Storage) bool { return true },
			replication.NewStorage,
		)
	}
	if err := b.gc.Start(ctx); err != nil {
		return fmt.Errorf("spartanq: start gc loop: %w", err)
	}
	if err := b.persistence.Start(ctx); err != nil {
		return fmt.Errorf("spartanq: start persistence loop: %w", err)
	}
	if b.replication != nil {
		if err := b.replication.Start(ctx); err != nil {
			return fmt.Errorf("spartanq: start replication: %w", err)
		}
	}
	return nil
}

// Stop gracefully stops every background loop, then performs one final
// synchronous snapshot, so a clean shutdown never loses the mutations
// made since the last persistence tick.
func (b *Broker) Stop(timeout time.Duration) error {
	if b.replication != nil {
		if err := b.replication.Stop(timeout); err != nil {
			b.log.Error("stop replication failed", "err", err)
		}
	}
	if err := b.gc.Stop(timeout); err != nil {
		b.log.Error("stop gc loop failed", "err", err)
	}
	if err := b.persistence.Stop(timeout); err != nil {
		b.log.Error("stop persistence loop failed", "err", err)
	}
	if err := b.Manager.Snapshot(); err != nil {
		return fmt.Errorf("spartanq: final snapshot: %w", err)
	}
	return nil
}

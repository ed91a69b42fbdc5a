package replication

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/spartanq/spartanq/internal"
	"golang.org/x/sync/errgroup"
)

// Primary drives the primary side of log-shipping replication: every
// interval, it dials every configured destination, exchanges Ping/Pong
// and AskIndex/RecvIndex, and ships each queue's Storage.Range since the
// replica's reported index. Destinations are synced concurrently with
// each other; within one destination's session, requests are strictly
// sequential (the protocol is a single stream, one request in flight at
// a time).
type Primary struct {
	lc internal.LCBase

	source       QueueSource
	destinations []string
	interval     time.Duration
	dialTimeout  time.Duration
	log          *slog.Logger

	task internal.TimerTask

	backoffMu sync.Mutex
	backoff   map[string]*backoffCounter
}

// NewPrimary returns a Primary shipping source's queues to every address
// in destinations every interval.
func NewPrimary(source QueueSource, destinations []string, interval time.Duration, log *slog.Logger) *Primary {
	if log == nil {
		log = slog.Default()
	}
	return &Primary{
		source:       source,
		destinations: destinations,
		interval:     interval,
		dialTimeout:  5 * time.Second,
		log:          log,
		backoff:      make(map[string]*backoffCounter),
	}
}

// Start begins the periodic replication cycle. Start returns
// ErrDoubleStarted if the driver is already running.
func (p *Primary) Start(ctx context.Context) error {
	if err := p.lc.TryStart(); err != nil {
		return err
	}
	p.task.Start(ctx, p.cycle, p.interval)
	return nil
}

// Stop terminates the driver, waiting up to timeout for an in-flight
// cycle to finish. Stop returns ErrDoubleStopped if the driver is not
// running.
func (p *Primary) Stop(timeout time.Duration) error {
	return p.lc.TryStop(timeout, func() internal.DoneChan { return p.task.Stop() })
}

func (p *Primary) cycle(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	for _, addr := range p.destinations {
		addr := addr
		group.Go(func() error {
			if holdoff := p.nextAttempt(addr); holdoff > 0 {
				select {
				case <-time.After(holdoff):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := p.Sync(ctx, addr); err != nil {
				p.recordFailure(addr)
				p.log.Warn("replication sync failed", "destination", addr, "err", err)
				return nil
			}
			p.recordSuccess(addr)
			return nil
		})
	}
	_ = group.Wait()
}

func (p *Primary) nextAttempt(addr string) time.Duration {
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	bc, ok := p.backoff[addr]
	if !ok || bc.failures == 0 {
		return 0
	}
	return bc.delay()
}

func (p *Primary) recordFailure(addr string) {
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	bc, ok := p.backoff[addr]
	if !ok {
		bc = &backoffCounter{BackoffConfig: DefaultBackoffConfig()}
		p.backoff[addr] = bc
	}
	bc.failures++
}

func (p *Primary) recordSuccess(addr string) {
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	if bc, ok := p.backoff[addr]; ok {
		bc.reset()
	}
}

// Sync runs one full catch-up session against addr: dial, ping, fetch
// the replica's per-queue indexes, then ship every queue's unsent
// range. The periodic cycle calls it for every destination; it is
// exported so a caller can force an immediate catch-up outside the
// schedule.
func (p *Primary) Sync(ctx context.Context, addr string) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("replication: dial %s: %w", addr, err)
	}
	defer conn.Close()
	codec := NewCodec(conn)

	if err := codec.Send(&Request{Primary: &PrimaryRequest{Kind: KindPing}}); err != nil {
		return err
	}
	pong, err := codec.Recv()
	if err != nil {
		return err
	}
	if pong.Replica == nil || pong.Replica.Kind != KindPong {
		return fmt.Errorf("%w: expected Pong", ErrProtocolMismatch)
	}

	if err := codec.Send(&Request{Primary: &PrimaryRequest{Kind: KindAskIndex}}); err != nil {
		return err
	}
	indexResp, err := codec.Recv()
	if err != nil {
		return err
	}
	if indexResp.Replica == nil || indexResp.Replica.Kind != KindRecvIndex {
		return fmt.Errorf("%w: expected RecvIndex", ErrProtocolMismatch)
	}
	applied := make(map[string]uint64, len(indexResp.Replica.Indexes))
	for _, qi := range indexResp.Replica.Indexes {
		applied[qi.Queue] = qi.Index
	}

	for _, name := range p.source.Names() {
		cell, ok := p.source.ReplicationCell(name)
		if !ok {
			continue
		}
		storage := cell.Storage()
		if storage == nil {
			continue
		}
		events := storage.Range(applied[name])
		if len(events) == 0 {
			continue
		}
		req := &Request{Primary: &PrimaryRequest{Kind: KindSendRange, Queue: name, Range: events}}
		if err := codec.Send(req); err != nil {
			return err
		}
		resp, err := codec.Recv()
		if err != nil {
			return err
		}
		if resp.Replica == nil {
			return fmt.Errorf("%w: expected RecvRange or QueueNotFound", ErrProtocolMismatch)
		}
		switch resp.Replica.Kind {
		case KindRecvRange:
			storage.Advance(events[len(events)-1].Index)
		case KindQueueNotFound:
			p.log.Warn("replica missing queue", "destination", addr, "queue", name)
		default:
			return fmt.Errorf("%w: expected RecvRange or QueueNotFound", ErrProtocolMismatch)
		}
	}
	return nil
}

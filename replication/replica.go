package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spartanq/spartanq/internal"
)

// Replica drives the replica side of log-shipping replication: it
// listens on Bind and, for every connection a primary opens, answers
// Ping, AskIndex and SendRange requests against source. Each incoming
// connection is handled sequentially (the protocol is one
// request-in-flight per stream); distinct connections are handled
// concurrently.
type Replica struct {
	lc internal.LCBase

	source   QueueSource
	bind     string
	log      *slog.Logger
	listener net.Listener
	done     internal.DoneChan
}

// NewReplica returns a Replica serving source's queues on bind.
func NewReplica(source QueueSource, bind string, log *slog.Logger) *Replica {
	if log == nil {
		log = slog.Default()
	}
	return &Replica{
		source: source,
		bind:   bind,
		log:    log,
	}
}

// Start opens the listen socket and begins accepting primary
// connections in the background. Start returns ErrDoubleStarted if the
// replica is already running.
func (r *Replica) Start(ctx context.Context) error {
	if err := r.lc.TryStart(); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", r.bind)
	if err != nil {
		_ = r.lc.TryStop(time.Second, func() internal.DoneChan {
			done := make(internal.DoneChan)
			close(done)
			return done
		})
		return fmt.Errorf("replication: listen %s: %w", r.bind, err)
	}
	r.listener = listener
	r.done = make(internal.DoneChan)
	go r.accept(ctx)
	return nil
}

func (r *Replica) accept(ctx context.Context) {
	defer close(r.done)
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn("accept failed", "err", err)
			continue
		}
		go r.serve(ctx, conn)
	}
}

func (r *Replica) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	codec := NewCodec(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		req, err := codec.Recv()
		if err != nil {
			if !errors.Is(err, ErrEmptySocket) {
				r.log.Warn("recv failed", "remote", conn.RemoteAddr(), "err", err)
			}
			return
		}
		if req.Primary == nil {
			r.log.Warn("unexpected replica-originated request", "remote", conn.RemoteAddr())
			return
		}
		resp, err := r.handle(req.Primary)
		if err != nil {
			r.log.Warn("handle failed", "remote", conn.RemoteAddr(), "err", err)
			return
		}
		if err := codec.Send(&Request{Replica: resp}); err != nil {
			r.log.Warn("send failed", "remote", conn.RemoteAddr(), "err", err)
			return
		}
	}
}

func (r *Replica) handle(req *PrimaryRequest) (*ReplicaRequest, error) {
	switch req.Kind {
	case KindPing:
		return &ReplicaRequest{Kind: KindPong}, nil
	case KindAskIndex:
		names := r.source.Names()
		indexes := make([]QueueIndex, 0, len(names))
		for _, name := range names {
			cell, ok := r.source.ReplicationCell(name)
			if !ok {
				continue
			}
			storage := cell.Storage()
			if storage == nil {
				continue
			}
			indexes = append(indexes, QueueIndex{Queue: name, Index: storage.LastIndex()})
		}
		return &ReplicaRequest{Kind: KindRecvIndex, Indexes: indexes}, nil
	case KindSendRange:
		cell, ok := r.source.ReplicationCell(req.Queue)
		if !ok {
			return &ReplicaRequest{Kind: KindQueueNotFound, Queue: req.Queue}, nil
		}
		for _, ie := range req.Range {
			cell.ApplyEvent(ie.Event)
		}
		if storage := cell.Storage(); storage != nil && len(req.Range) > 0 {
			storage.SetLastApplied(req.Range[len(req.Range)-1].Index)
		}
		return &ReplicaRequest{Kind: KindRecvRange}, nil
	default:
		return nil, fmt.Errorf("replication: unexpected primary request kind %d", req.Kind)
	}
}

// Stop closes the listen socket and waits up to timeout for the accept
// loop to return. Sessions already being served are not waited for; they
// end when their connection closes or ctx is cancelled. Stop returns
// ErrDoubleStopped if the replica is not running.
func (r *Replica) Stop(timeout time.Duration) error {
	return r.lc.TryStop(timeout, func() internal.DoneChan {
		r.listener.Close()
		return r.done
	})
}

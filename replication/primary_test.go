package replication_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/spartanq/spartanq/replication"
)

// serveOnce listens on a loopback port, accepts a single connection and
// hands it to handler as a Codec. The listener is torn down with the
// test.
func serveOnce(t *testing.T, handler func(*replication.Codec)) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(replication.NewCodec(conn))
	}()
	return l.Addr().String()
}

// TestPrimaryNoDestinations exercises the cycle with nothing to dial:
// the timer task must still start and stop cleanly.
func TestPrimaryNoDestinations(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, nil, 10*time.Millisecond, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := primary.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := primary.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// TestPrimaryDoubleStart exercises the shared lifecycle sentinel both
// Primary and Replica rely on.
func TestPrimaryDoubleStart(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, nil, time.Hour, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := primary.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer primary.Stop(time.Second)

	if err := primary.Start(ctx); err == nil {
		t.Fatal("expected an error starting an already-running Primary")
	}
}

// TestSyncPingPong drives one Sync session against a hand-rolled
// replica that answers Ping and AskIndex correctly. With nothing to
// ship, Sync must return nil.
func TestSyncPingPong(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, nil, time.Hour, noopLogger())

	addr := serveOnce(t, func(codec *replication.Codec) {
		for {
			req, err := codec.Recv()
			if err != nil {
				return
			}
			switch req.Primary.Kind {
			case replication.KindPing:
				codec.Send(&replication.Request{Replica: &replication.ReplicaRequest{Kind: replication.KindPong}})
			case replication.KindAskIndex:
				codec.Send(&replication.Request{Replica: &replication.ReplicaRequest{Kind: replication.KindRecvIndex}})
			}
		}
	})

	if err := primary.Sync(context.Background(), addr); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

// TestSyncProtocolMismatch answers Ping with the wrong variant; Sync
// must fail with ErrProtocolMismatch.
func TestSyncProtocolMismatch(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, nil, time.Hour, noopLogger())

	addr := serveOnce(t, func(codec *replication.Codec) {
		if _, err := codec.Recv(); err != nil {
			return
		}
		codec.Send(&replication.Request{Replica: &replication.ReplicaRequest{Kind: replication.KindRecvRange}})
	})

	err := primary.Sync(context.Background(), addr)
	if !errors.Is(err, replication.ErrProtocolMismatch) {
		t.Fatalf("Sync = %v, want ErrProtocolMismatch", err)
	}
}

// TestSyncEmptySocket closes the connection without answering Ping;
// Sync must fail with ErrEmptySocket.
func TestSyncEmptySocket(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, nil, time.Hour, noopLogger())

	addr := serveOnce(t, func(codec *replication.Codec) {
		codec.Recv()
	})

	err := primary.Sync(context.Background(), addr)
	if !errors.Is(err, replication.ErrEmptySocket) {
		t.Fatalf("Sync = %v, want ErrEmptySocket", err)
	}
}

// TestPrimaryUnreachableDestination exercises the failure path: no
// listener is bound at addr, so sync must fail and the cycle must not
// block or panic.
func TestPrimaryUnreachableDestination(t *testing.T) {
	mgr := newManager(t, "orders")
	primary := replication.NewPrimary(mgr, []string{"127.0.0.1:1"}, 10*time.Millisecond, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := primary.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := primary.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

package queue

import (
	"bytes"
	"testing"

	"github.com/spartanq/spartanq/message"
)

func push(t *testing.T, db Database, opts ...func(*message.Builder)) *message.Message {
	t.Helper()
	b := message.NewBuilder().Payload([]byte("Hello, world"))
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	db.Push(m)
	return m
}

func TestPushPop(t *testing.T) {
	db := NewTreeDatabase()
	push(t, db)
	m := db.Pop(0)
	if m == nil {
		t.Fatal("expected a message")
	}
	if string(m.Payload) != "Hello, world" {
		t.Fatalf("Payload = %q", m.Payload)
	}
	if m.Status != message.InTransit || m.Tries != 1 {
		t.Fatalf("unexpected state: %+v", m)
	}
	if db.Size() != 1 {
		t.Fatalf("Size = %d, want 1", db.Size())
	}
}

func TestDelayedPush(t *testing.T) {
	db := NewTreeDatabase()
	push(t, db, func(b *message.Builder) { b.Delay(900) })
	if db.Pop(0) != nil {
		t.Fatal("delayed message should not be poppable before its deadline")
	}
	if db.Size() != 1 {
		t.Fatalf("Size = %d, want 1", db.Size())
	}
}

func TestGCExhausted(t *testing.T) {
	db := NewTreeDatabase()
	m := push(t, db, func(b *message.Builder) { b.MaxTries(1) })
	db.Pop(0)
	if db.Requeue(m.Id) {
		t.Fatal("requeue should fail: no tries remaining")
	}
	if db.Size() != 1 {
		t.Fatalf("Size = %d, want 1 before gc", db.Size())
	}
	db.Gc(0)
	if db.Size() != 0 {
		t.Fatalf("Size = %d, want 0 after gc", db.Size())
	}
}

func TestOrderingByOffset(t *testing.T) {
	db := NewTreeDatabase()
	a := push(t, db, func(b *message.Builder) { b.Offset(10) })
	bMsg := push(t, db, func(b *message.Builder) { b.Offset(0) })
	first := db.Pop(0)
	if first.Id != bMsg.Id {
		t.Fatalf("expected B to pop first, got %v", first.Id)
	}
	second := db.Pop(0)
	if second.Id != a.Id {
		t.Fatalf("expected A to pop second, got %v", second.Id)
	}
}

func TestFIFOWithinEqualOffset(t *testing.T) {
	db := NewTreeDatabase()
	first := push(t, db)
	second := push(t, db)
	if got := db.Pop(0); got.Id != first.Id {
		t.Fatalf("expected insertion order to break the tie, got %v", got.Id)
	}
	if got := db.Pop(0); got.Id != second.Id {
		t.Fatalf("expected the second push next, got %v", got.Id)
	}
}

func TestRequeueReturnsMessageToAvailable(t *testing.T) {
	db := NewTreeDatabase()
	m := push(t, db, func(b *message.Builder) { b.MaxTries(2) })
	db.Pop(0)
	if !db.Requeue(m.Id) {
		t.Fatal("requeue should succeed with tries remaining")
	}
	again := db.Pop(0)
	if again == nil || again.Id != m.Id {
		t.Fatal("requeued message should be poppable again")
	}
	if again.Tries != 2 {
		t.Fatalf("Tries = %d, want 2 after the second reservation", again.Tries)
	}
}

func TestGCRetainsAvailableWithTries(t *testing.T) {
	db := NewTreeDatabase()
	push(t, db, func(b *message.Builder) { b.MaxTries(2) })
	db.Gc(0)
	if db.Size() != 1 {
		t.Fatal("an Available message with tries remaining must survive gc")
	}
}

func TestGCExpiredInTransit(t *testing.T) {
	db := NewTreeDatabase()
	m := push(t, db, func(b *message.Builder) { b.MaxTries(3).Timeout(10) })
	db.Pop(0)
	db.Gc(5)
	if db.Size() != 1 {
		t.Fatal("not yet expired, should survive")
	}
	db.Gc(10)
	if db.Size() != 0 {
		t.Fatal("expired InTransit message should be collected")
	}
	_ = m
}

func TestDeleteRemovesFromBothStructures(t *testing.T) {
	db := NewTreeDatabase()
	m := push(t, db)
	deleted := db.Delete(m.Id)
	if deleted == nil || deleted.Id != m.Id {
		t.Fatal("expected deleted message back")
	}
	if db.Size() != 0 {
		t.Fatal("expected store empty after delete")
	}
	if _, ok := db.Position(func(*message.Message) bool { return true }); ok {
		t.Fatal("expected index empty after delete")
	}
}

func TestClear(t *testing.T) {
	db := NewTreeDatabase()
	push(t, db)
	push(t, db)
	db.Clear()
	if !db.IsEmpty() {
		t.Fatal("expected empty after Clear")
	}
}

func TestInsertionSequenceNeverReused(t *testing.T) {
	db := NewTreeDatabase()
	m1 := push(t, db)
	db.Delete(m1.Id)
	m2 := push(t, db)
	if db.store[m2.Id].seq != 1 {
		t.Fatalf("expected sequence 1 to be assigned after a push-delete-push, got %d", db.store[m2.Id].seq)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := NewTreeDatabase()
	push(t, db, func(b *message.Builder) { b.Offset(3).Metadata("k", "v") })
	push(t, db, func(b *message.Builder) { b.Offset(1) })
	db.Pop(0)

	var buf bytes.Buffer
	if err := EncodeTree(&buf, db); err != nil {
		t.Fatalf("EncodeTree: %v", err)
	}
	restored, err := DecodeTree(&buf)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if restored.Size() != db.Size() {
		t.Fatalf("Size mismatch: %d vs %d", restored.Size(), db.Size())
	}
	if restored.nextSeq != db.nextSeq {
		t.Fatalf("nextSeq mismatch: %d vs %d", restored.nextSeq, db.nextSeq)
	}
}

func TestEventRoundTrip(t *testing.T) {
	m, err := message.NewBuilder().Payload([]byte("x")).Build()
	if err != nil {
		t.Fatal(err)
	}
	events := []*Event{
		NewPushEvent(10, m),
		NewPopEvent(11),
		NewRequeueEvent(12, m.Id),
		NewDeleteEvent(13, m.Id),
		NewGcEvent(14),
		NewClearEvent(15),
	}
	for _, e := range events {
		var buf bytes.Buffer
		if err := EncodeEvent(&buf, e); err != nil {
			t.Fatalf("EncodeEvent(%v): %v", e.Kind, err)
		}
		got, err := DecodeEvent(&buf)
		if err != nil {
			t.Fatalf("DecodeEvent(%v): %v", e.Kind, err)
		}
		if got.Kind != e.Kind || got.At != e.At {
			t.Fatalf("round trip mismatch for %v: %+v", e.Kind, got)
		}
	}
}

func TestEventApplyReplay(t *testing.T) {
	m, err := message.NewBuilder().Payload([]byte("x")).MaxTries(1).Timeout(5).Build()
	if err != nil {
		t.Fatal(err)
	}
	db := NewTreeDatabase()
	NewPushEvent(0, m).Apply(db)
	if db.Size() != 1 {
		t.Fatal("expected one message after replaying Push")
	}
	NewPopEvent(1).Apply(db)
	NewGcEvent(6).Apply(db)
	if db.Size() != 0 {
		t.Fatal("expected replayed Gc at event time 6 to collect the expired message")
	}
}

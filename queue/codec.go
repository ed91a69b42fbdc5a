package queue

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spartanq/spartanq/message"
	"github.com/vmihailenco/msgpack/v5"
)

// This file implements the shared binary encoding used by both
// persistence (snapshot and log files) and the replication wire
// protocol: fixed-size little-endian integers, length-prefixed byte
// sequences and variable-length collections, and a discriminant byte
// per tagged variant. The format is not self-describing and must
// remain stable, so it is written by hand against encoding/binary
// rather than through a general-purpose serializer (see the design
// notes for why this one piece stays off the dependency list), with
// one exception: Message.Metadata is a dynamic, reflection-shaped
// value, and is encoded as an embedded msgpack blob rather than by
// hand, exactly the job msgpack is already in the dependency graph for.

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func WriteUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	_, err := io.ReadFull(r, id[:])
	return id, err
}

// EncodeMessage writes m's fixed-layout binary representation to w.
func EncodeMessage(w io.Writer, m *message.Message) error {
	if err := WriteUUID(w, m.Id); err != nil {
		return err
	}
	var meta []byte
	if len(m.Metadata) > 0 {
		var err error
		meta, err = msgpack.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("queue: encode metadata: %w", err)
		}
	}
	if err := WriteBytes(w, meta); err != nil {
		return err
	}
	if err := WriteBytes(w, m.Payload); err != nil {
		return err
	}
	if err := WriteInt32(w, m.Offset); err != nil {
		return err
	}
	if err := WriteUint32(w, m.MaxTries); err != nil {
		return err
	}
	if err := WriteUint32(w, m.Timeout); err != nil {
		return err
	}
	if err := WriteInt64(w, m.Delay); err != nil {
		return err
	}
	if err := WriteUint8(w, uint8(m.Status)); err != nil {
		return err
	}
	if err := WriteUint32(w, m.Tries); err != nil {
		return err
	}
	return WriteInt64(w, m.ReservedAt)
}

// DecodeMessage reads a Message previously written by EncodeMessage.
func DecodeMessage(r io.Reader) (*message.Message, error) {
	id, err := ReadUUID(r)
	if err != nil {
		return nil, err
	}
	metaBytes, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if len(metaBytes) > 0 {
		if err := msgpack.Unmarshal(metaBytes, &meta); err != nil {
			return nil, fmt.Errorf("queue: decode metadata: %w", err)
		}
	}
	payload, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	offset, err := ReadInt32(r)
	if err != nil {
		return nil, err
	}
	maxTries, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	timeout, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	delay, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	status, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	tries, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	reservedAt, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	return &message.Message{
		Id:         id,
		Metadata:   meta,
		Payload:    payload,
		Offset:     offset,
		MaxTries:   maxTries,
		Timeout:    timeout,
		Delay:      delay,
		Status:     message.Status(status),
		Tries:      tries,
		ReservedAt: reservedAt,
	}, nil
}

// EncodeEvent writes e's fixed-layout binary representation to w.
func EncodeEvent(w io.Writer, e *Event) error {
	if err := WriteUint8(w, uint8(e.Kind)); err != nil {
		return err
	}
	if err := WriteInt64(w, e.At); err != nil {
		return err
	}
	switch e.Kind {
	case Push:
		return EncodeMessage(w, e.Message)
	case Requeue, Delete:
		return WriteUUID(w, e.Id)
	default:
		return nil
	}
}

// DecodeEvent reads an Event previously written by EncodeEvent.
func DecodeEvent(r io.Reader) (*Event, error) {
	kind, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	at, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	e := &Event{Kind: Kind(kind), At: at}
	switch e.Kind {
	case Push:
		m, err := DecodeMessage(r)
		if err != nil {
			return nil, err
		}
		e.Message = m
	case Requeue, Delete:
		id, err := ReadUUID(r)
		if err != nil {
			return nil, err
		}
		e.Id = id
	case Pop, Gc, Clear:
	default:
		return nil, fmt.Errorf("queue: unknown event kind %d", kind)
	}
	return e, nil
}

// EncodeTree writes a full snapshot of t: the next insertion sequence
// followed by every stored (sequence, message) pair. Order does not
// matter for correctness, but messages are written in current index
// order for a deterministic byte stream across equal states.
func EncodeTree(w io.Writer, t *TreeDatabase) error {
	bw := bufio.NewWriter(w)
	if err := WriteUint64(bw, t.nextSeq); err != nil {
		return err
	}
	if err := WriteUint32(bw, uint32(len(t.index))); err != nil {
		return err
	}
	for _, ie := range t.index {
		e, ok := t.store[ie.id]
		if !ok {
			continue
		}
		if err := WriteUint64(bw, e.seq); err != nil {
			return err
		}
		if err := EncodeMessage(bw, e.msg); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeTree reads a snapshot previously written by EncodeTree into a
// fresh TreeDatabase.
func DecodeTree(r io.Reader) (*TreeDatabase, error) {
	br := bufio.NewReader(r)
	nextSeq, err := ReadUint64(br)
	if err != nil {
		return nil, err
	}
	count, err := ReadUint32(br)
	if err != nil {
		return nil, err
	}
	t := NewTreeDatabase()
	for i := uint32(0); i < count; i++ {
		seq, err := ReadUint64(br)
		if err != nil {
			return nil, err
		}
		m, err := DecodeMessage(br)
		if err != nil {
			return nil, err
		}
		t.pushRaw(seq, m)
	}
	t.nextSeq = nextSeq
	return t, nil
}

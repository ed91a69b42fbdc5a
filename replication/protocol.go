package replication

import (
	"fmt"
	"io"

	"github.com/spartanq/spartanq/queue"
)

// requestTag and primaryKind/replicaKind are the discriminant bytes
// written ahead of every frame's payload, matching the persisted
// event's discriminant-byte convention.
type requestTag uint8

const (
	tagPrimary requestTag = iota
	tagReplica
)

// PrimaryKind tags a PrimaryRequest variant.
type PrimaryKind uint8

const (
	KindPing PrimaryKind = iota
	KindAskIndex
	KindSendRange
)

// ReplicaKind tags a ReplicaRequest variant.
type ReplicaKind uint8

const (
	KindPong ReplicaKind = iota
	KindRecvIndex
	KindRecvRange
	KindQueueNotFound
)

// PrimaryRequest is a message the primary driver sends to a replica.
type PrimaryRequest struct {
	Kind PrimaryKind

	// Queue and Range are set only for SendRange.
	Queue string
	Range []IndexedEvent
}

// QueueIndex pairs a queue name with the replica's last applied index
// for it, the payload shape of RecvIndex.
type QueueIndex struct {
	Queue string
	Index uint64
}

// ReplicaRequest is the single response a replica sends for each
// PrimaryRequest it receives.
type ReplicaRequest struct {
	Kind ReplicaKind

	// Indexes is set only for RecvIndex.
	Indexes []QueueIndex

	// Queue is set only for QueueNotFound.
	Queue string
}

// Request is the top-level tagged frame payload: either a primary- or a
// replica-originated message, matching the protocol's Primary(..)/
// Replica(..) variant split.
type Request struct {
	Primary *PrimaryRequest
	Replica *ReplicaRequest
}

func encodeIndexedEvents(w io.Writer, events []IndexedEvent) error {
	if err := queue.WriteUint32(w, uint32(len(events))); err != nil {
		return err
	}
	for _, ie := range events {
		if err := queue.WriteUint64(w, ie.Index); err != nil {
			return err
		}
		if err := queue.EncodeEvent(w, ie.Event); err != nil {
			return err
		}
	}
	return nil
}

func decodeIndexedEvents(r io.Reader) ([]IndexedEvent, error) {
	n, err := queue.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]IndexedEvent, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := queue.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		e, err := queue.DecodeEvent(r)
		if err != nil {
			return nil, err
		}
		ret = append(ret, IndexedEvent{Index: idx, Event: e})
	}
	return ret, nil
}

func writeString(w io.Writer, s string) error {
	return queue.WriteBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := queue.ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodePrimaryRequest(w io.Writer, req *PrimaryRequest) error {
	if err := queue.WriteUint8(w, uint8(req.Kind)); err != nil {
		return err
	}
	switch req.Kind {
	case KindPing, KindAskIndex:
		return nil
	case KindSendRange:
		if err := writeString(w, req.Queue); err != nil {
			return err
		}
		return encodeIndexedEvents(w, req.Range)
	default:
		return fmt.Errorf("replication: unknown primary request kind %d", req.Kind)
	}
}

func decodePrimaryRequest(r io.Reader) (*PrimaryRequest, error) {
	kind, err := queue.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	req := &PrimaryRequest{Kind: PrimaryKind(kind)}
	switch req.Kind {
	case KindPing, KindAskIndex:
		return req, nil
	case KindSendRange:
		q, err := readString(r)
		if err != nil {
			return nil, err
		}
		req.Queue = q
		events, err := decodeIndexedEvents(r)
		if err != nil {
			return nil, err
		}
		req.Range = events
		return req, nil
	default:
		return nil, fmt.Errorf("replication: unknown primary request kind %d", kind)
	}
}

func encodeReplicaRequest(w io.Writer, req *ReplicaRequest) error {
	if err := queue.WriteUint8(w, uint8(req.Kind)); err != nil {
		return err
	}
	switch req.Kind {
	case KindPong, KindRecvRange:
		return nil
	case KindRecvIndex:
		if err := queue.WriteUint32(w, uint32(len(req.Indexes))); err != nil {
			return err
		}
		for _, qi := range req.Indexes {
			if err := writeString(w, qi.Queue); err != nil {
				return err
			}
			if err := queue.WriteUint64(w, qi.Index); err != nil {
				return err
			}
		}
		return nil
	case KindQueueNotFound:
		return writeString(w, req.Queue)
	default:
		return fmt.Errorf("replication: unknown replica request kind %d", req.Kind)
	}
}

func decodeReplicaRequest(r io.Reader) (*ReplicaRequest, error) {
	kind, err := queue.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	req := &ReplicaRequest{Kind: ReplicaKind(kind)}
	switch req.Kind {
	case KindPong, KindRecvRange:
		return req, nil
	case KindRecvIndex:
		n, err := queue.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		req.Indexes = make([]QueueIndex, 0, n)
		for i := uint32(0); i < n; i++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			idx, err := queue.ReadUint64(r)
			if err != nil {
				return nil, err
			}
			req.Indexes = append(req.Indexes, QueueIndex{Queue: name, Index: idx})
		}
		return req, nil
	case KindQueueNotFound:
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		req.Queue = name
		return req, nil
	default:
		return nil, fmt.Errorf("replication: unknown replica request kind %d", kind)
	}
}

// EncodeRequest writes req's fixed-layout binary representation to w.
func EncodeRequest(w io.Writer, req *Request) error {
	switch {
	case req.Primary != nil:
		if err := queue.WriteUint8(w, uint8(tagPrimary)); err != nil {
			return err
		}
		return encodePrimaryRequest(w, req.Primary)
	case req.Replica != nil:
		if err := queue.WriteUint8(w, uint8(tagReplica)); err != nil {
			return err
		}
		return encodeReplicaRequest(w, req.Replica)
	default:
		return fmt.Errorf("replication: empty request")
	}
}

// DecodeRequest reads a Request previously written by EncodeRequest.
func DecodeRequest(r io.Reader) (*Request, error) {
	tag, err := queue.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	switch requestTag(tag) {
	case tagPrimary:
		p, err := decodePrimaryRequest(r)
		if err != nil {
			return nil, err
		}
		return &Request{Primary: p}, nil
	case tagReplica:
		p, err := decodeReplicaRequest(r)
		if err != nil {
			return nil, err
		}
		return &Request{Replica: p}, nil
	default:
		return nil, fmt.Errorf("replication: unknown request tag %d", tag)
	}
}

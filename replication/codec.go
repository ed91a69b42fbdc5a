package replication

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload, guarding against a
// corrupt or hostile length prefix causing an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// Codec reads and writes length-prefixed Request frames over a single
// connection. Framing uses a 4-byte little-endian length prefix ahead of
// the request's own binary encoding, the same discipline as the rest of
// the fixed-layout wire format.
type Codec struct {
	rw io.ReadWriter
}

// NewCodec wraps rw (typically a net.Conn) in a Codec.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{rw: rw}
}

// Send writes req as one length-prefixed frame.
func (c *Codec) Send(req *Request) error {
	var buf bytes.Buffer
	if err := EncodeRequest(&buf, req); err != nil {
		return CodecError(err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(buf.Len()))
	if _, err := c.rw.Write(lenBuf[:]); err != nil {
		return SocketError(err)
	}
	if _, err := c.rw.Write(buf.Bytes()); err != nil {
		return SocketError(err)
	}
	return nil
}

// Recv reads exactly one length-prefixed frame and decodes it.
//
// Recv returns ErrEmptySocket if the peer closed the connection before
// any bytes of the length prefix arrived.
func (c *Codec) Recv() (*Request, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.rw, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, ErrEmptySocket
		}
		return nil, SocketError(err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, CodecError(fmt.Errorf("frame of %d bytes exceeds MaxFrameSize", n))
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.rw, payload); err != nil {
		return nil, SocketError(err)
	}
	req, err := DecodeRequest(bytes.NewReader(payload))
	if err != nil {
		return nil, CodecError(err)
	}
	return req, nil
}

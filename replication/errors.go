package replication

import "errors"

// Error kinds for a replication session. All are per-session fatal: the
// driver closes that stream and retries on the next scheduled cycle
// rather than retrying within the session.
var (
	// ErrConfigNotFound indicates replication was invoked without a
	// primary or replica configuration section present.
	ErrConfigNotFound = errors.New("replication: config not found")

	// ErrSocketError wraps an underlying connection I/O failure.
	// Use SocketError to attach the cause.
	ErrSocketError = errors.New("replication: socket error")

	// ErrEmptySocket indicates the peer closed the connection mid-session.
	ErrEmptySocket = errors.New("replication: empty socket")

	// ErrCodecError wraps a malformed-frame failure. Use CodecError to
	// attach the cause.
	ErrCodecError = errors.New("replication: codec error")

	// ErrProtocolMismatch indicates a response frame of an unexpected
	// variant was received for the request sent.
	ErrProtocolMismatch = errors.New("replication: protocol mismatch")
)

// SocketError wraps an I/O error observed on the connection so callers
// can still match it with errors.Is(err, ErrSocketError).
func SocketError(cause error) error {
	return wrapped{ErrSocketError, cause}
}

// CodecError wraps a frame-decoding failure so callers can still match
// it with errors.Is(err, ErrCodecError).
func CodecError(cause error) error {
	return wrapped{ErrCodecError, cause}
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.cause.Error()
}

func (w wrapped) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}

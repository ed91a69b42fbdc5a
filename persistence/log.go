package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spartanq/spartanq/queue"
)

// Log persists each queue as an append-only file of length-prefixed
// Event records under Path, named after the queue. On load, events are
// replayed in file order against a fresh database.
type Log struct {
	Path string
}

var _ LogDriver = (*Log)(nil)

func (l *Log) path(name string) string {
	return filepath.Join(l.Path, name)
}

func writeRecord(w io.Writer, e *queue.Event) error {
	var buf bytes.Buffer
	if err := queue.EncodeEvent(&buf, e); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(buf.Len()))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readRecord(r io.Reader) (*queue.Event, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return queue.DecodeEvent(bytes.NewReader(payload))
}

// LoadQueue implements Driver: replays every event in the named queue's
// log file, in file order, against a fresh database. A missing file
// loads as an empty queue.
func (l *Log) LoadQueue(name string) (queue.Database, error) {
	f, err := os.Open(l.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return queue.NewTreeDatabase(), nil
	}
	if err != nil {
		return nil, newError(FileOpen, name, err)
	}
	defer f.Close()

	db := queue.NewTreeDatabase()
	for {
		e, err := readRecord(f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(InvalidFormat, name, err)
		}
		e.Apply(db)
	}
	return db, nil
}

// PersistEvent implements LogDriver, appending a single event record to
// the named queue's log file.
func (l *Log) PersistEvent(name string, e *queue.Event) error {
	if err := os.MkdirAll(l.Path, 0o755); err != nil {
		return newError(DirectoryOpen, name, err)
	}
	f, err := os.OpenFile(l.path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return newError(FileOpen, name, err)
	}
	defer f.Close()
	if err := writeRecord(f, e); err != nil {
		return newError(FileWrite, name, err)
	}
	return nil
}

// PersistQueue implements Driver by compacting the log: the database's
// current contents are rewritten as a fresh sequence of synthetic Push
// events, replacing whatever was previously logged. Manager.Snapshot
// never calls this in Log mode (it is a no-op in Log mode); it exists
// so Log still satisfies Driver and can be used to compact an
// oversized log explicitly.
func (l *Log) PersistQueue(name string, db queue.Database) error {
	tree, ok := db.(*queue.TreeDatabase)
	if !ok {
		return newError(Serialization, name, errors.New("log persistence requires a *queue.TreeDatabase"))
	}
	if err := os.MkdirAll(l.Path, 0o755); err != nil {
		return newError(DirectoryOpen, name, err)
	}
	tmp, err := os.CreateTemp(l.Path, name+".*.tmp")
	if err != nil {
		return newError(FileOpen, name, err)
	}
	tmpName := tmp.Name()

	for _, m := range tree.Messages() {
		if err := writeRecord(tmp, queue.NewPushEvent(0, m)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return newError(Serialization, name, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return newError(FileWrite, name, err)
	}
	if err := os.Rename(tmpName, l.path(name)); err != nil {
		os.Remove(tmpName)
		return newError(FileWrite, name, err)
	}
	return nil
}

package persistence

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/spartanq/spartanq/queue"
)

// Snapshot persists each queue in full to a file named after the queue
// under Path. Writes go to a temporary sibling file first, then are
// renamed into place, so a reader never observes a partially written
// snapshot.
type Snapshot struct {
	Path string
}

var _ Driver = (*Snapshot)(nil)

func (s *Snapshot) path(name string) string {
	return filepath.Join(s.Path, name)
}

// LoadQueue implements Driver. A missing file loads as an empty queue.
func (s *Snapshot) LoadQueue(name string) (queue.Database, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return queue.NewTreeDatabase(), nil
	}
	if err != nil {
		return nil, newError(FileOpen, name, err)
	}
	defer f.Close()
	db, err := queue.DecodeTree(f)
	if err != nil {
		return nil, newError(InvalidFormat, name, err)
	}
	return db, nil
}

// PersistQueue implements Driver.
func (s *Snapshot) PersistQueue(name string, db queue.Database) error {
	tree, ok := db.(*queue.TreeDatabase)
	if !ok {
		return newError(Serialization, name, errors.New("snapshot persistence requires a *queue.TreeDatabase"))
	}
	var buf bytes.Buffer
	if err := queue.EncodeTree(&buf, tree); err != nil {
		return newError(Serialization, name, err)
	}
	if err := os.MkdirAll(s.Path, 0o755); err != nil {
		return newError(DirectoryOpen, name, err)
	}
	tmp, err := os.CreateTemp(s.Path, name+".*.tmp")
	if err != nil {
		return newError(FileOpen, name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return newError(FileWrite, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return newError(FileWrite, name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return newError(FileWrite, name, err)
	}
	return nil
}

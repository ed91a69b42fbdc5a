package node

import "github.com/spartanq/spartanq/queue"

// Node is a name-to-cell mapping, built once at startup (add/addDB are
// only called during initialization and persistence load, never after
// background loops or request handlers start) and read-only thereafter.
// Because of that, Node itself needs no lock: its map is only ever read
// concurrently once construction is finished.
type Node struct {
	cells map[string]*Cell
}

// NewNode returns an empty Node.
func NewNode() *Node {
	return &Node{cells: make(map[string]*Cell)}
}

// Add initializes a default queue under name.
func (n *Node) Add(name string) {
	n.AddDB(name, queue.NewTreeDatabase())
}

// AddDB inserts a pre-built queue database under name, wrapping it in a
// fresh Cell. Used by persistence load, where the database is
// reconstructed from a snapshot or replayed log rather than created
// empty.
func (n *Node) AddDB(name string, db queue.Database) {
	n.cells[name] = NewCell(db)
}

// Queue returns the cell registered under name, or nil if none exists.
// Queue does not itself lock the cell; callers acquire it through the
// cell's own methods.
func (n *Node) Queue(name string) *Cell {
	return n.cells[name]
}

// Iter calls f for every (name, cell) pair. Iteration order is
// unspecified.
func (n *Node) Iter(f func(name string, cell *Cell)) {
	for name, cell := range n.cells {
		f(name, cell)
	}
}

// Names returns the registered queue names.
func (n *Node) Names() []string {
	ret := make([]string, 0, len(n.cells))
	for name := range n.cells {
		ret = append(ret, name)
	}
	return ret
}

// Package btree implements a concurrent, in-memory B+tree mapping
// uint64 keys to opaque value handles, using optimistic concurrency
// in the style of Masstree: readers are lock-free, writers descend the
// same lock-free way, lock the target leaf and lock parents upward only
// while propagating a split, and both retry past concurrent splits by
// chasing sibling pointers instead of blocking.
package btree

// Config controls how a Tree behaves. The zero Config is not valid;
// use DefaultConfig.
type Config struct {
	// ConcurrentWriters declares whether more than one goroutine may
	// call Insert concurrently with each other or with Remove. Remove
	// refuses to run unless this is false, since the delete path below
	// is single-threaded only.
	ConcurrentWriters bool
}

// DefaultConfig returns the Config used by New: concurrent writers
// allowed, matching the lock-coupling insert path's intended use.
func DefaultConfig() Config {
	return Config{ConcurrentWriters: true}
}

// Tree is a concurrent B+tree keyed by uint64. The zero value is not
// usable; construct one with New.
type Tree struct {
	root     childSlot
	config   Config
	counters counters
}

// New creates an empty Tree with the default configuration.
func New() *Tree {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an empty Tree governed by config.
func NewWithConfig(config Config) *Tree {
	t := &Tree{config: config}
	t.root.Store(initRoot())
	t.counters.nodeCount.Add(1)
	t.counters.height.Store(1)
	return t
}

// Get looks up key and returns its value handle. The second return
// value is false if key is not present. Get is lock-free and safe to
// call concurrently with Insert and with other Gets.
func (t *Tree) Get(key uint64) (any, bool) {
	t.counters.getCount.Add(1)
	return t.get(key)
}

// Insert adds key with the given value handle, returning true if it
// was inserted and false if key was already present (Insert never
// overwrites an existing value). Insert is safe to call concurrently
// with Get and, when Config.ConcurrentWriters is true, with other
// Inserts.
func (t *Tree) Insert(key uint64, value any) bool {
	t.counters.insertCount.Add(1)
	ok := t.insert(key, value)
	if ok {
		t.counters.keyCount.Add(1)
		t.counters.recordSpace(leafWidth)
	}
	return ok
}

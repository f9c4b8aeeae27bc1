package btree

import "errors"

var (
	// ErrKeyNotFound is returned by Remove when the key does not exist.
	ErrKeyNotFound = errors.New("btree: key not found")

	// ErrConcurrentRemove is returned by Remove when the tree's Config
	// declares it open for concurrent readers/writers — the delete path
	// is single-threaded only, matching the source's decision to leave
	// the concurrent btree::remove unimplemented.
	ErrConcurrentRemove = errors.New("btree: Remove is not safe to call while other goroutines may be using the tree")
)

package btree

import (
	"math"
	"sync/atomic"
)

// counters is the tree's live atomic counter set, mirroring the shape
// of cowbtree.CowBTreeStats: a handful of int64 atomics bumped on the
// hot path and snapshotted on demand via Stats(). They are global, not
// per-goroutine — the corpus has no sharded-counter library to reach
// for, so this is a known contention point under heavy write fan-out,
// not a correctness issue.
type counters struct {
	nodeCount      atomic.Int64
	keyCount       atomic.Int64
	height         atomic.Int64
	insertCount    atomic.Int64
	getCount       atomic.Int64
	splitCount     atomic.Int64
	rebalanceCount atomic.Int64
	retries        atomic.Int64
	siblingHops    atomic.Int64
	space          atomic.Uint64 // float64 bits, see recordSpace
}

// recordSpace folds a successful insert into the running "space"
// average the source's btree::efficiency() reports, ported from
// leaf_node::insert/inner_node::insert's STATS block:
//
//	space *= num_nodes; space += 1/capacity; space /= num_nodes
//
// capacity is the node type's fixed slot count (LEAF_WIDTH for a leaf,
// LEAF_WIDTH+1 for an inner node in the source), not actual occupancy,
// so despite the name this is an average of a constant weighted by
// insert/node-creation event counts, not a true fill-factor — a quirk
// of the source kept intact rather than reinterpreted. This port only
// samples the leaf capacity at the outer Insert call, one sample per
// successful key rather than one per physical leaf_node::insert/
// inner_node::insert call (which in the source also fires once per
// ancestor touched while propagating a split); see DESIGN.md.
func (c *counters) recordSpace(capacity int) {
	cap64 := 1 / float64(capacity)
	for {
		old := c.space.Load()
		n := float64(c.nodeCount.Load())
		if n < 1 {
			n = 1
		}
		next := (math.Float64frombits(old)*n + cap64) / n
		if c.space.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Stats is a point-in-time snapshot of a Tree's counters.
type Stats struct {
	// KeyCount is the number of live keys currently in the tree.
	KeyCount int64

	NodeCount      int64
	InsertCount    int64
	GetCount       int64
	SplitCount     int64
	RebalanceCount int64

	// Height is the number of levels from root to leaf, inclusive
	// (1 for a tree with only a leaf root).
	Height int64

	// Retries counts optimistic-descent restarts from the root, taken
	// when a concurrent change makes the current path unusable.
	Retries int64

	// SiblingHops counts right/left sibling-chase steps taken while
	// recovering from a concurrent split mid-descent.
	SiblingHops int64

	// Efficiency mirrors the source's btree::efficiency(): a running
	// average of 1/capacity sampled per successful insert, weighted by
	// live node count. It is not a fill-factor despite the name — see
	// counters.recordSpace.
	Efficiency float64
}

// Stats returns a snapshot of the tree's running counters.
func (t *Tree) Stats() Stats {
	return Stats{
		KeyCount:       t.counters.keyCount.Load(),
		NodeCount:      t.counters.nodeCount.Load(),
		InsertCount:    t.counters.insertCount.Load(),
		GetCount:       t.counters.getCount.Load(),
		SplitCount:     t.counters.splitCount.Load(),
		RebalanceCount: t.counters.rebalanceCount.Load(),
		Height:         t.counters.height.Load(),
		Retries:        t.counters.retries.Load(),
		SiblingHops:    t.counters.siblingHops.Load(),
		Efficiency:     math.Float64frombits(t.counters.space.Load()),
	}
}

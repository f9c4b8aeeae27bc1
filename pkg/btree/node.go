package btree

import "sync/atomic"

// child is the capability every node level implements so that code
// which reparents a node after a split or rebalance does not need to
// know whether it is holding a *leafNode or an *innerNode — the
// Go-idiomatic stand-in for the source's "first field is always
// parent" struct-layout aliasing trick.
type child interface {
	setParent(p *innerNode)
	parentNode() *innerNode
	versionPtr() *version
	isLeafNode() bool
}

// childSlot holds a child interface value behind an atomic.Value. The
// child is stored inside a childBox, so the atomic.Value always sees
// one concrete type even when a slot holds a *leafNode at one time and
// an *innerNode at another (the tree's root slot does, whenever the
// root is promoted or collapsed).
type childSlot struct {
	v atomic.Value
}

type childBox struct{ c child }

func (s *childSlot) Load() child {
	v := s.v.Load()
	if v == nil {
		return nil
	}
	return v.(childBox).c
}

func (s *childSlot) Store(c child) {
	s.v.Store(childBox{c})
}

type keyIndexedPosition struct {
	i, p int
}

type leafEntry struct {
	key   uint64
	value any
}

type innerEntry struct {
	key   uint64
	child childSlot
}

// leafNode is a fixed-fanout (leafWidth physical slots) leaf holding
// key/value-handle pairs, doubly linked to its left and right siblings
// for sibling-coupling traversal.
type leafNode struct {
	parent  atomic.Pointer[innerNode]
	right   atomic.Pointer[leafNode]
	left    atomic.Pointer[leafNode]
	ver     version
	highkey uint64
	lowkey  uint64
	perm    atomic.Uint64
	entry   [leafWidth]leafEntry
}

// innerNode is a fixed-fanout inner node: child0 plus leafWidth
// (key, child) entries give it leafWidth+1 children.
type innerNode struct {
	parent  atomic.Pointer[innerNode]
	right   atomic.Pointer[innerNode]
	left    atomic.Pointer[innerNode]
	ver     version
	highkey uint64
	lowkey  uint64
	perm    atomic.Uint64
	child0  childSlot
	entry   [leafWidth]innerEntry
}

func newLeafNode(parent *innerNode) *leafNode {
	n := &leafNode{highkey: ^uint64(0)}
	n.parent.Store(parent)
	n.perm.Store(uint64(makeEmptyPermutation()))
	n.ver.markLeaf()
	return n
}

func newInnerNode(parent *innerNode) *innerNode {
	n := &innerNode{highkey: ^uint64(0)}
	n.parent.Store(parent)
	n.perm.Store(uint64(makeEmptyPermutation()))
	return n
}

func (n *leafNode) setParent(p *innerNode)  { n.parent.Store(p) }
func (n *leafNode) parentNode() *innerNode  { return n.parent.Load() }
func (n *leafNode) versionPtr() *version    { return &n.ver }
func (n *leafNode) isLeafNode() bool        { return true }
func (n *innerNode) setParent(p *innerNode) { n.parent.Store(p) }
func (n *innerNode) parentNode() *innerNode { return n.parent.Load() }
func (n *innerNode) versionPtr() *version   { return &n.ver }
func (n *innerNode) isLeafNode() bool       { return false }

func (n *leafNode) loadPerm() permutation  { return permutation(n.perm.Load()) }
func (n *leafNode) storePerm(p permutation) { n.perm.Store(uint64(p)) }
func (n *leafNode) keyAt(slot int) uint64  { return n.entry[slot].key }
func (n *leafNode) size() int              { return n.loadPerm().size() }
func (n *leafNode) full() bool             { return n.loadPerm().size() == leafWidth }

func (n *innerNode) loadPerm() permutation  { return permutation(n.perm.Load()) }
func (n *innerNode) storePerm(p permutation) { n.perm.Store(uint64(p)) }
func (n *innerNode) keyAt(slot int) uint64  { return n.entry[slot].key }
func (n *innerNode) full() bool             { return n.loadPerm().size() == leafWidth }

// size counts child0 (when present) plus the permutation's live
// entries, matching the source's inner_node::size — distinct from
// leafNode.size, since an inner node with k keys has k+1 children.
func (n *innerNode) size() int {
	s := n.loadPerm().size()
	if n.child0.Load() != nil {
		s++
	}
	return s
}

func compareKey(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type entrySource interface {
	keyAt(slot int) uint64
}

// keyLowerBoundBy finds the logical position a key belongs at for an
// *insert* (returns the logical index of the first live key >= key and
// its physical slot; when key belongs after every live key it returns
// size and the head of the free list, or (leafWidth,-1) if the node is
// full).
func keyLowerBoundBy(perm permutation, src entrySource, key uint64) keyIndexedPosition {
	l, r := 0, perm.size()
	for l < r {
		m := (l + r) >> 1
		mp := perm.get(m)
		switch cmp := compareKey(key, src.keyAt(mp)); {
		case cmp < 0:
			r = m
		case cmp == 0:
			return keyIndexedPosition{m, mp}
		default:
			l = m + 1
		}
	}
	if l < leafWidth {
		return keyIndexedPosition{l, perm.get(l)}
	}
	return keyIndexedPosition{l, -1}
}

// keyLowerBound finds the logical position a key descends through for
// a *lookup* (returns the last live physical slot with key <= the
// target, or (-1,-1) if the target precedes every live key).
func keyLowerBound(perm permutation, src entrySource, key uint64) keyIndexedPosition {
	l, r := 0, perm.size()
	for l < r {
		m := (l + r) >> 1
		mp := perm.get(m)
		switch cmp := compareKey(key, src.keyAt(mp)); {
		case cmp < 0:
			r = m
		case cmp == 0:
			return keyIndexedPosition{m, mp}
		default:
			l = m + 1
		}
	}
	if l-1 < 0 {
		return keyIndexedPosition{l - 1, -1}
	}
	return keyIndexedPosition{l - 1, perm.get(l - 1)}
}

func (n *leafNode) get(key uint64) (any, bool) {
	ip := keyLowerBound(n.loadPerm(), n, key)
	if ip.p < 0 {
		return nil, false
	}
	if compareKey(n.entry[ip.p].key, key) != 0 {
		return nil, false
	}
	return n.entry[ip.p].value, true
}

func (n *leafNode) insert(key uint64, value any) {
	perm := n.loadPerm()
	ip := keyLowerBoundBy(perm, n, key)
	if ip.i == leafWidth {
		return
	}
	pos := perm.insertFromBack(ip.i)
	n.entry[pos].key = key
	n.entry[pos].value = value
	n.storePerm(perm)
}

func (n *innerNode) get(key uint64) child {
	ip := keyLowerBound(n.loadPerm(), n, key)
	if ip.p < 0 {
		return n.child0.Load()
	}
	return n.entry[ip.p].child.Load()
}

func (n *innerNode) insert(key uint64, c child) {
	perm := n.loadPerm()
	ip := keyLowerBoundBy(perm, n, key)
	if ip.i == leafWidth {
		return
	}
	pos := perm.insertFromBack(ip.i)
	n.entry[pos].key = key
	n.entry[pos].child.Store(c)
	n.storePerm(perm)
	c.setParent(n)
}

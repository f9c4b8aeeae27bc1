package btree

// get and insert below are ported from the source's from_root/find/
// from_leaf/leaf_insert/inner_insert labels using Go's goto statement:
// each label marks a retry point in the optimistic descent, and every
// local that crosses a label is declared once at the top, exactly the
// way the source declares all of a function's locals up front. This
// keeps the retry structure – which is the point of the algorithm –
// recognizable against the original rather than flattened into nested
// closures.

// get performs a lock-free lookup, descending from the root snapshot
// and chasing right/left siblings whenever a concurrent structural
// change is detected mid-descent.
func (t *Tree) get(key uint64) (any, bool) {
	var (
		inner  *innerNode
		leaf   *leafNode
		tempI  *innerNode
		tempL  *leafNode
		v1, v2 versionWord
		ip     keyIndexedPosition
		comp   bool
		result any
		found  bool
	)

fromRoot:
	root := t.root.Load()
	v1 = root.versionPtr().load()
	if v1.isLeaf() {
		leaf = root.(*leafNode)
		goto fromLeaf
	}
	inner = root.(*innerNode)

find:
	{
		next := inner.get(key)
		v2 = versionWord(0)
		if next != nil {
			v2 = next.versionPtr().load()
		}
		fresh := inner.ver.load()
		if v1 != fresh || fresh.insertLocked() {
			if v1.isRoot() {
				t.counters.retries.Add(1)
				goto fromRoot
			}
			fresh = inner.ver.load()
			if fresh.smoVersion() != v1.smoVersion() || fresh.smoLocked() {
				for {
					r := inner.right.Load()
					comp = r != nil
					if comp {
						v1 = r.ver.load()
						comp = key >= inner.highkey
					}
					tempI = r
					if tempI == inner.right.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					inner = tempI
					if key < inner.highkey {
						goto find
					}
					t.counters.retries.Add(1)
					goto fromRoot
				}
				for {
					l := inner.left.Load()
					comp = l != nil
					if comp {
						v1 = l.ver.load()
						comp = key < l.highkey
					}
					tempI = l
					if tempI == inner.left.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					inner = tempI
					ip = keyLowerBound(inner.loadPerm(), inner, key)
					if ip.i < 0 {
						t.counters.retries.Add(1)
						goto fromRoot
					}
					goto find
				}
				v1 = fresh
				goto find
			}
			v1 = fresh
			goto find
		}
		v1 = v2
		if next == nil {
			return nil, false
		}
		if v1.isLeaf() {
			leaf = next.(*leafNode)
			goto fromLeaf
		}
		inner = next.(*innerNode)
		goto find
	}

fromLeaf:
	result, found = leaf.get(key)
	{
		fresh := leaf.ver.load()
		if v1 != fresh || fresh.insertLocked() {
			if v1.isRoot() {
				t.counters.retries.Add(1)
				goto fromRoot
			}
			fresh = leaf.ver.load()
			if fresh.smoVersion() != v1.smoVersion() || fresh.smoLocked() {
				for {
					r := leaf.right.Load()
					comp = r != nil
					if comp {
						v1 = r.ver.load()
						comp = key >= leaf.highkey
					}
					tempL = r
					if tempL == leaf.right.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					leaf = tempL
					if key < leaf.highkey {
						goto fromLeaf
					}
					t.counters.retries.Add(1)
					goto fromRoot
				}
				for {
					l := leaf.left.Load()
					comp = l != nil
					if comp {
						v1 = l.ver.load()
						comp = key < l.highkey
					}
					tempL = l
					if tempL == leaf.left.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					leaf = tempL
					ip = keyLowerBound(leaf.loadPerm(), leaf, key)
					if ip.i < 0 {
						t.counters.retries.Add(1)
						goto fromRoot
					}
					goto fromLeaf
				}
				v1 = fresh
				goto fromLeaf
			}
			v1 = fresh
			goto fromLeaf
		}
	}
	return result, found
}

// insert performs a lock-coupled insert, descending optimistically
// like get, then acquiring the insert lock on the target leaf, and
// propagating any split up through ancestor inner nodes (splitting or
// rebalancing each in turn) as far as the root. It returns false if
// the key is already present.
func (t *Tree) insert(key uint64, value any) bool {
	var (
		inner    *innerNode
		leaf     *leafNode
		tempI    *innerNode
		tempL    *leafNode
		v1, v2   versionWord
		ip       keyIndexedPosition
		comp     bool
		cv1, cv2 *version
		pendingC child
	)

fromRoot:
	root := t.root.Load()
	v1 = root.versionPtr().load()
	if v1.isLeaf() {
		leaf = root.(*leafNode)
		goto leafInsert
	}
	inner = root.(*innerNode)

find:
	{
		next := inner.get(key)
		v2 = versionWord(0)
		if next != nil {
			v2 = next.versionPtr().load()
		}
		fresh := inner.ver.load()
		if v1 != fresh || fresh.insertLocked() {
			if v1.isRoot() {
				t.counters.retries.Add(1)
				goto fromRoot
			}
			fresh = inner.ver.load()
			if fresh.smoVersion() != v1.smoVersion() || fresh.smoLocked() {
				for {
					r := inner.right.Load()
					comp = r != nil
					if comp {
						v1 = r.ver.load()
						comp = key >= inner.highkey
					}
					tempI = r
					if tempI == inner.right.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					inner = tempI
					if key < inner.highkey {
						goto find
					}
					t.counters.retries.Add(1)
					goto fromRoot
				}
				for {
					l := inner.left.Load()
					comp = l != nil
					if comp {
						v1 = l.ver.load()
						comp = key < l.highkey
					}
					tempI = l
					if tempI == inner.left.Load() {
						break
					}
				}
				if comp {
					t.counters.siblingHops.Add(1)
					inner = tempI
					ip = keyLowerBound(inner.loadPerm(), inner, key)
					if ip.i < 0 {
						t.counters.retries.Add(1)
						goto fromRoot
					}
					goto find
				}
				v1 = fresh
				goto find
			}
			v1 = fresh
			goto find
		}
		v1 = v2
		if next == nil {
			return false
		}
		if v1.isLeaf() {
			leaf = next.(*leafNode)
			goto leafInsert
		}
		inner = next.(*innerNode)
		goto find
	}

leafInsert:
	if _, ok := leaf.get(key); ok {
		return false
	}

	for leaf.ver.tryInsertLock() != 0 {
	}

	if v1.isRoot() && v1.insertVersion() != leaf.ver.load().insertVersion() {
		leaf.ver.releaseInsertLock()
		t.counters.retries.Add(1)
		goto fromRoot
	}
	if r := leaf.right.Load(); r != nil && key >= leaf.highkey {
		t.counters.siblingHops.Add(1)
		v1 = r.ver.load()
		prevLeaf := leaf
		leaf = r
		if key < leaf.highkey {
			prevLeaf.ver.releaseInsertLock()
			goto leafInsert
		}
		prevLeaf.ver.releaseInsertLock()
		t.counters.retries.Add(1)
		goto fromRoot
	} else {
		for {
			l := leaf.left.Load()
			comp = l != nil
			if comp {
				v1 = l.ver.load()
				comp = key < l.highkey
			}
			tempL = l
			if tempL == leaf.left.Load() {
				break
			}
		}
		if comp {
			t.counters.siblingHops.Add(1)
			ip = keyLowerBound(tempL.loadPerm(), tempL, key)
			leaf.ver.releaseInsertLock()
			if ip.i < 0 {
				t.counters.retries.Add(1)
				goto fromRoot
			}
			leaf = tempL
			goto leafInsert
		}
	}

	if leaf.full() {
		if leaf.ver.load().isRoot() {
			// Promote a new root above this full leaf. leaf itself keeps
			// its identity and its already-held insert+SMO locks — unlike
			// the source, which copies the root's content into a fresh
			// unlocked node and discards the original, Go has no need to
			// reuse the old node's address, so we just keep operating on
			// the same (now demoted, non-root) node under the locks it
			// already holds instead of releasing and re-acquiring them.
			for leaf.ver.trySMOLock() != 0 {
			}
			nr := newRoot(leaf)
			t.root.Store(nr)
			t.counters.nodeCount.Add(1)
			t.counters.height.Add(1)
			if leaf.tryRebalance(key, value) {
				t.counters.rebalanceCount.Add(1)
				return true
			}
			res := leaf.split(key, value)
			t.counters.splitCount.Add(1)
			t.counters.nodeCount.Add(1)
			key = res.sepKey
			pendingC = res.right
			cv1, cv2 = res.leftVer, res.rightVer
			inner = leaf.parentNode()
			goto innerInsert
		}
		for leaf.ver.trySMOLock() != 0 {
		}
		if leaf.tryRebalance(key, value) {
			t.counters.rebalanceCount.Add(1)
			return true
		}
		res := leaf.split(key, value)
		t.counters.splitCount.Add(1)
		t.counters.nodeCount.Add(1)
		key = res.sepKey
		pendingC = res.right
		cv1, cv2 = res.leftVer, res.rightVer
		inner = leaf.parentNode()
		goto innerInsert
	}

	leaf.insert(key, value)
	leaf.ver.incrementInsert()
	leaf.ver.releaseInsertLock()
	return true

innerInsert:
	for {
		for inner.ver.tryInsertLock() != 0 {
		}
		if inner == pendingC.parentNode() {
			break
		}
		inner.ver.releaseInsertLock()
		inner = pendingC.parentNode()
	}

	if inner.full() {
		if inner.ver.load().isRoot() {
			// Same reasoning as the leaf case above: keep operating on
			// the demoted node under its already-held locks.
			for inner.ver.trySMOLock() != 0 {
			}
			nr := newRoot(inner)
			t.root.Store(nr)
			t.counters.nodeCount.Add(1)
			t.counters.height.Add(1)
			if inner.tryRebalance(key, pendingC, cv1, cv2) {
				t.counters.rebalanceCount.Add(1)
				return true
			}
			res := inner.split(key, pendingC, cv1, cv2)
			t.counters.splitCount.Add(1)
			t.counters.nodeCount.Add(1)
			key = res.sepKey
			pendingC = res.right
			cv1, cv2 = res.leftVer, res.rightVer
			inner = inner.parentNode()
			goto innerInsert
		}
		for inner.ver.trySMOLock() != 0 {
		}
		if inner.tryRebalance(key, pendingC, cv1, cv2) {
			t.counters.rebalanceCount.Add(1)
			return true
		}
		res := inner.split(key, pendingC, cv1, cv2)
		t.counters.splitCount.Add(1)
		t.counters.nodeCount.Add(1)
		key = res.sepKey
		pendingC = res.right
		cv1, cv2 = res.leftVer, res.rightVer
		inner = inner.parentNode()
		goto innerInsert
	}

	inner.insert(key, pendingC)
	cv1.releaseSMOLock()
	cv2.releaseSMOLock()
	inner.ver.incrementInsert()
	inner.ver.releaseInsertLock()
	return true
}

package btree

// splitResult carries a completed split one level up the tree: the new separator key, the freshly created right
// sibling, and the version of the (left, right) pair whose SMO locks
// the parent level must release once it has linked them in.
type splitResult struct {
	sepKey   uint64
	right    child
	leftVer  *version
	rightVer *version
}

// split halves n, inserting (key,value) into whichever half it now
// belongs to. The caller must already hold n's insert and SMO locks.
// split acquires an SMO lock on the new sibling and increments/
// releases the insert lock on both; the SMO locks on both remain held
// for the caller to hand off to the parent-level insert.
func (n *leafNode) split(key uint64, value any) splitResult {
	sz := n.size()
	mid := (sz + 1) / 2

	perm := n.loadPerm()
	nr := newLeafNode(n.parent.Load())
	nr.right.Store(n.right.Load())
	nr.left.Store(n)

	nrPerm := perm
	nrPerm.rotate(0, mid)
	nrPerm.setSize(sz - mid)
	nr.storePerm(nrPerm)
	nr.highkey = n.highkey
	nr.lowkey = n.entry[perm.get(mid)].key

	for i := mid; i < sz; i++ {
		slot := perm.get(i)
		nr.entry[slot] = n.entry[slot]
	}

	nr.ver.trySMOLock()

	n.right.Store(nr)
	n.highkey = nr.lowkey
	if rr := nr.right.Load(); rr != nil {
		rr.left.Store(nr)
	}
	perm.setSize(mid)
	n.storePerm(perm)

	if compareKey(key, n.highkey) < 0 {
		n.insert(key, value)
	} else {
		nr.insert(key, value)
	}

	n.ver.incrementInsert()
	nr.ver.incrementInsert()
	n.ver.releaseInsertLock()
	nr.ver.releaseInsertLock()

	return splitResult{sepKey: n.highkey, right: nr, leftVer: &n.ver, rightVer: &nr.ver}
}

// split halves n the same way leafNode.split does, additionally
// reparenting every grandchild that moves to the new sibling and
// releasing the SMO locks of the child pair that triggered this split
// (prevLeft/prevRight) once the structural rewrite is complete.
func (n *innerNode) split(key uint64, c child, prevLeft, prevRight *version) splitResult {
	sz := n.size()
	mid := (sz + 1) / 2

	perm := n.loadPerm()
	nr := newInnerNode(n.parent.Load())
	nr.right.Store(n.right.Load())
	nr.left.Store(n)

	nr.child0.Store(n.entry[perm.get(mid-1)].child.Load())

	nrPerm := perm
	nrPerm.rotate(0, mid)
	nrPerm.setSize(sz - mid - 1)
	nr.storePerm(nrPerm)
	nr.highkey = n.highkey
	nr.lowkey = n.entry[perm.get(mid-1)].key

	for i := mid; i < sz-1; i++ {
		slot := perm.get(i)
		nr.entry[slot] = n.entry[slot]
	}

	for i := mid; i < sz-1; i++ {
		nr.entry[perm.get(i)].child.Load().setParent(nr)
	}
	nr.child0.Load().setParent(nr)

	nr.ver.trySMOLock()

	n.right.Store(nr)
	n.highkey = nr.lowkey
	if rr := nr.right.Load(); rr != nil {
		rr.left.Store(nr)
	}
	perm.setSize(mid - 1)
	n.storePerm(perm)

	if compareKey(key, n.highkey) < 0 {
		n.insert(key, c)
	} else {
		nr.insert(key, c)
	}

	prevLeft.releaseSMOLock()
	prevRight.releaseSMOLock()

	n.ver.incrementInsert()
	nr.ver.incrementInsert()
	n.ver.releaseInsertLock()
	nr.ver.releaseInsertLock()

	return splitResult{sepKey: n.highkey, right: nr, leftVer: &n.ver, rightVer: &nr.ver}
}

// tryRebalance attempts to insert (key,value) by shifting entries into
// a non-full sibling instead of splitting, trying the left sibling
// first and then the right. It returns true if the insert completed
// this way, having already released every lock it acquired.
func (n *leafNode) tryRebalance(key uint64, value any) bool {
	ip := keyLowerBoundBy(n.loadPerm(), n, key)
	if n.rebalanceWithLeft(ip, key, value) {
		return true
	}
	return n.rebalanceWithRight(ip, key, value)
}

func (n *leafNode) rebalanceWithLeft(ip keyIndexedPosition, key uint64, value any) bool {
	left := n.left.Load()
	if left == nil {
		return false
	}
	parent := n.parent.Load()

	for {
		for left.ver.tryInsertLock() != 0 {
			if left.parent.Load() != parent || left.full() || left.ver.load().smoLocked() {
				return false
			}
		}
		if cur := n.left.Load(); cur == left {
			break
		} else {
			left.ver.releaseInsertLock()
			left = cur
			if left == nil {
				return false
			}
		}
	}
	if left.parent.Load() != parent || left.full() {
		left.ver.releaseInsertLock()
		return false
	}

	for {
		p := n.parent.Load()
		for p.ver.tryInsertLock() != 0 {
		}
		if p == parent {
			break
		}
		p.ver.releaseInsertLock()
		parent = p
	}
	if left.parent.Load() != parent {
		left.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	toMov := leafWidth - left.size()
	if ip.i < leafWidth {
		toMov /= 2
	}
	if toMov < 1 {
		toMov = 1
	}

	if left.size()+toMov > leafWidth || toMov > ip.i {
		left.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	for left.ver.trySMOLock() != 0 {
	}

	base := left.size()
	temp := n.loadPerm()
	leftPerm := left.loadPerm()
	for i := 0; i < toMov; i++ {
		left.entry[leftPerm.get(i+base)] = n.entry[temp.get(i)]
	}
	leftPerm.setSize(base + toMov)
	left.storePerm(leftPerm)

	pUpd := keyLowerBoundBy(parent.loadPerm(), parent, left.highkey)

	if toMov == ip.i {
		parent.entry[pUpd.p].key = key

		temp.rotate(0, toMov)
		temp.setSize(temp.size() - toMov)
		n.storePerm(temp)

		pos := temp.insertFromBack(0)
		n.entry[pos].key = key
		n.entry[pos].value = value
		n.storePerm(temp)

		left.highkey = key
		n.lowkey = key
	} else {
		parent.entry[pUpd.p].key = n.entry[temp.get(toMov)].key

		temp.rotate(0, toMov)
		temp.setSize(temp.size() - toMov)
		n.storePerm(temp)

		left.highkey = n.entry[temp.get(0)].key
		n.lowkey = n.entry[temp.get(0)].key
		n.insert(key, value)
	}

	left.ver.releaseBothLocks()
	n.ver.releaseBothLocks()
	parent.ver.incrementInsert()
	parent.ver.releaseInsertLock()

	return true
}

func (n *leafNode) rebalanceWithRight(ip keyIndexedPosition, key uint64, value any) bool {
	right := n.right.Load()
	if right == nil {
		return false
	}
	parent := n.parent.Load()

	for {
		for right.ver.tryInsertLock() != 0 {
			if right.parent.Load() != parent || right.full() || right.ver.load().smoLocked() {
				return false
			}
		}
		if cur := n.right.Load(); cur == right {
			break
		} else {
			right.ver.releaseInsertLock()
			right = cur
			if right == nil {
				return false
			}
		}
	}
	if right.parent.Load() != parent || right.full() {
		right.ver.releaseInsertLock()
		return false
	}

	for {
		p := n.parent.Load()
		for p.ver.tryInsertLock() != 0 {
		}
		if p == parent {
			break
		}
		p.ver.releaseInsertLock()
		parent = p
	}
	if right.parent.Load() != parent {
		right.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	sz := n.size()
	toMov := leafWidth - right.size()
	if ip.i > 0 {
		toMov /= 2
	}
	if toMov < 1 {
		toMov = 1
	}

	if right.size()+toMov > leafWidth || toMov >= leafWidth-ip.i {
		right.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	for right.ver.trySMOLock() != 0 {
	}

	perm := n.loadPerm()
	rightPerm := right.loadPerm()
	rightPerm.rotate(0, leafWidth-toMov)
	rightPerm.setSize(rightPerm.size() + toMov)
	for i := 0; i < toMov; i++ {
		right.entry[rightPerm.get(i)] = n.entry[perm.get(sz-toMov+i)]
	}
	right.storePerm(rightPerm)

	pUpd := keyLowerBoundBy(parent.loadPerm(), parent, right.lowkey)
	parent.entry[pUpd.p].key = n.entry[perm.get(sz-toMov)].key

	perm.setSize(sz - toMov)
	n.storePerm(perm)

	n.highkey = parent.entry[pUpd.p].key
	right.lowkey = parent.entry[pUpd.p].key
	n.insert(key, value)

	right.ver.releaseBothLocks()
	n.ver.releaseBothLocks()
	parent.ver.incrementInsert()
	parent.ver.releaseInsertLock()

	return true
}

// tryRebalance is the inner-node analogue of leafNode.tryRebalance: it
// shifts (key, c) into a non-full sibling inner node, reparenting the
// moved grandchildren, and on success releases the SMO locks of the
// child pair that triggered this insert (prevLeft/prevRight).
func (n *innerNode) tryRebalance(key uint64, c child, prevLeft, prevRight *version) bool {
	ip := keyLowerBoundBy(n.loadPerm(), n, key)
	if n.rebalanceWithLeft(ip, key, c, prevLeft, prevRight) {
		return true
	}
	return n.rebalanceWithRight(ip, key, c, prevLeft, prevRight)
}

func (n *innerNode) rebalanceWithLeft(ip keyIndexedPosition, key uint64, c child, prevLeft, prevRight *version) bool {
	left := n.left.Load()
	if left == nil {
		return false
	}
	parent := n.parent.Load()
	maxSize := leafWidth + 1

	for {
		for left.ver.tryInsertLock() != 0 {
			if left.parent.Load() != parent || left.full() || left.ver.load().smoLocked() {
				return false
			}
		}
		if cur := n.left.Load(); cur == left {
			break
		} else {
			left.ver.releaseInsertLock()
			left = cur
			if left == nil {
				return false
			}
		}
	}
	if left.parent.Load() != parent || left.full() {
		left.ver.releaseInsertLock()
		return false
	}

	for {
		p := n.parent.Load()
		for p.ver.tryInsertLock() != 0 {
		}
		if p == parent {
			break
		}
		p.ver.releaseInsertLock()
		parent = p
	}
	if left.parent.Load() != parent {
		left.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	toMov := maxSize - left.size()
	if ip.i < maxSize-1 {
		toMov /= 2
	}
	if toMov < 1 {
		toMov = 1
	}

	if left.size()+toMov > maxSize || toMov > ip.i+1 {
		left.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	for left.ver.trySMOLock() != 0 {
	}

	perm := n.loadPerm()
	base := left.loadPerm().size()
	pUpd := keyLowerBoundBy(parent.loadPerm(), parent, left.highkey)

	leftPerm := left.loadPerm()
	leftPerm.setSize(base + toMov)
	for i := 1; i < toMov; i++ {
		left.entry[leftPerm.get(base+i)] = n.entry[perm.get(i-1)]
	}
	left.entry[leftPerm.get(base)].key = parent.entry[pUpd.p].key
	left.entry[leftPerm.get(base)].child.Store(n.child0.Load())
	left.storePerm(leftPerm)

	if ip.i+1 == toMov {
		parent.entry[pUpd.p].key = key

		n.child0.Store(c)
		c.setParent(n)

		perm.setSize(perm.size() - toMov + 1)
		perm.rotate(0, toMov-1)
		n.storePerm(perm)

		prevLeft.releaseSMOLock()
		prevRight.releaseSMOLock()

		leftPerm = left.loadPerm()
		for i := base; i < base+toMov; i++ {
			left.entry[leftPerm.get(i)].child.Load().setParent(left)
		}

		n.lowkey = parent.entry[pUpd.p].key
		left.highkey = parent.entry[pUpd.p].key
	} else {
		parent.entry[pUpd.p].key = n.entry[perm.get(toMov-1)].key

		n.child0.Store(n.entry[perm.get(toMov-1)].child.Load())
		n.child0.Load().setParent(n)

		perm.setSize(perm.size() - toMov)
		perm.rotate(0, toMov)
		n.storePerm(perm)

		leftPerm = left.loadPerm()
		for i := base; i < base+toMov; i++ {
			left.entry[leftPerm.get(i)].child.Load().setParent(left)
		}

		left.highkey = parent.entry[pUpd.p].key
		n.lowkey = parent.entry[pUpd.p].key
		n.insert(key, c)

		prevLeft.releaseSMOLock()
		prevRight.releaseSMOLock()
	}

	left.ver.releaseBothLocks()
	n.ver.releaseBothLocks()
	parent.ver.incrementInsert()
	parent.ver.releaseInsertLock()

	return true
}

func (n *innerNode) rebalanceWithRight(ip keyIndexedPosition, key uint64, c child, prevLeft, prevRight *version) bool {
	right := n.right.Load()
	if right == nil {
		return false
	}
	parent := n.parent.Load()
	maxSize := leafWidth + 1

	for {
		for right.ver.tryInsertLock() != 0 {
			if right.parent.Load() != parent || right.full() || right.ver.load().smoLocked() {
				return false
			}
		}
		if cur := n.right.Load(); cur == right {
			break
		} else {
			right.ver.releaseInsertLock()
			right = cur
			if right == nil {
				return false
			}
		}
	}
	if right.parent.Load() != parent || right.full() {
		right.ver.releaseInsertLock()
		return false
	}

	for {
		p := n.parent.Load()
		for p.ver.tryInsertLock() != 0 {
		}
		if p == parent {
			break
		}
		p.ver.releaseInsertLock()
		parent = p
	}
	if right.parent.Load() != parent {
		right.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	toMov := maxSize - right.size()
	toMov /= 2
	if toMov < 1 {
		toMov = 1
	}

	if right.size()+toMov > maxSize || toMov >= maxSize-ip.i {
		right.ver.releaseInsertLock()
		parent.ver.releaseInsertLock()
		return false
	}

	for right.ver.trySMOLock() != 0 {
	}

	perm := n.loadPerm()

	rightPerm := right.loadPerm()
	rightPerm.rotate(0, leafWidth-toMov)
	rightPerm.setSize(rightPerm.size() + toMov)
	for i := 0; i < toMov-1; i++ {
		right.entry[rightPerm.get(i)] = n.entry[perm.get(maxSize-toMov+i)]
	}
	right.entry[rightPerm.get(toMov-1)].key = n.highkey
	right.entry[rightPerm.get(toMov-1)].child.Store(right.child0.Load())
	right.storePerm(rightPerm)
	right.child0.Store(n.entry[perm.get(leafWidth-toMov)].child.Load())
	right.child0.Load().setParent(right)

	pUpd := keyLowerBoundBy(parent.loadPerm(), parent, n.highkey)
	parent.entry[pUpd.p].key = n.entry[perm.get(leafWidth-toMov)].key

	perm.setSize(leafWidth - toMov)
	n.storePerm(perm)

	for i := leafWidth - toMov; i < leafWidth; i++ {
		n.entry[perm.get(i)].child.Load().setParent(right)
	}

	n.highkey = parent.entry[pUpd.p].key
	right.lowkey = parent.entry[pUpd.p].key
	n.insert(key, c)

	prevLeft.releaseSMOLock()
	prevRight.releaseSMOLock()

	right.ver.releaseBothLocks()
	n.ver.releaseBothLocks()
	parent.ver.incrementInsert()
	parent.ver.releaseInsertLock()

	return true
}

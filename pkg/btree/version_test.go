package btree

import "testing"

func TestVersionLocking(t *testing.T) {
	var v version
	if v.tryInsertLock() != 0 {
		t.Fatal("tryInsertLock should succeed on an unlocked version")
	}
	if !v.load().insertLocked() {
		t.Fatal("insertLocked should report true after tryInsertLock")
	}
	if v.trySMOLock() != 0 {
		t.Fatal("SMO lock should be independent of the insert lock")
	}
	v.releaseBothLocks()
	if v.load().insertLocked() || v.load().smoLocked() {
		t.Fatal("releaseBothLocks should clear both lock bits")
	}
}

func TestVersionInsertLockExclusion(t *testing.T) {
	var v version
	v.tryInsertLock()
	if v.tryInsertLock() == 0 {
		t.Fatal("a second tryInsertLock should fail while the first is held")
	}
	v.releaseInsertLock()
}

func TestVersionCounters(t *testing.T) {
	var v version
	v.markRoot()
	v.markLeaf()
	if !v.load().isRoot() || !v.load().isLeaf() {
		t.Fatal("markRoot/markLeaf should be reflected in load()")
	}
	before := v.load().insertVersion()
	v.incrementInsert()
	if v.load().insertVersion() == before {
		t.Fatal("incrementInsert should change insertVersion")
	}
	v.unmarkRoot()
	if v.load().isRoot() {
		t.Fatal("unmarkRoot should clear isRoot")
	}
}

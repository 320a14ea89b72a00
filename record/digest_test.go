package record

import (
	"crypto/md5"
	"testing"

	"github.com/bdeggleston/rowstore/testing_helpers"
)

// two construction paths for the same logical content digest the
// same; insertion order must not matter
func TestDigestInsertionOrderInvariance(t *testing.T) {
	md := newTestMetadata()

	r1 := NewRecord(md)
	r1.AddNamed(CellName("a"), []byte("1"), 1)
	r1.AddNamed(CellName("b"), []byte("2"), 2)
	r1.AddNamed(CellName("c"), []byte("3"), 3)

	r2 := Factory{Hint: Reverse}.New(md)
	r2.AddNamed(CellName("c"), []byte("3"), 3)
	r2.AddNamed(CellName("b"), []byte("2"), 2)
	r2.AddNamed(CellName("a"), []byte("1"), 1)

	testing_helpers.AssertSliceEqual(t, "digests", Digest(r1), Digest(r2))
	testing_helpers.AssertEqual(t, "equal", true, r1.Equal(r2))
}

func TestDigestDistinguishesContent(t *testing.T) {
	md := newTestMetadata()

	r1 := NewRecord(md)
	r1.AddNamed(CellName("a"), []byte("1"), 1)

	r2 := NewRecord(md)
	r2.AddNamed(CellName("a"), []byte("2"), 1)

	if DigestsEqual(Digest(r1), Digest(r2)) {
		t.Fatalf("distinct values produced equal digests")
	}

	r3 := NewRecord(md)
	r3.AddNamed(CellName("a"), []byte("1"), 1)
	r3.DeleteAt(DeletionTime{MarkedForDeleteAt: 5, LocalDeletionTime: 50})
	if DigestsEqual(Digest(r1), Digest(r3)) {
		t.Fatalf("deletion info did not contribute to the digest")
	}
}

// swapping content between names must change the digest; the fold
// is order sensitive, not a commutative combine
func TestDigestOrderSensitivity(t *testing.T) {
	md := newTestMetadata()

	r1 := NewRecord(md)
	r1.AddNamed(CellName("a"), []byte("1"), 1)
	r1.AddNamed(CellName("b"), []byte("2"), 1)

	r2 := NewRecord(md)
	r2.AddNamed(CellName("a"), []byte("2"), 1)
	r2.AddNamed(CellName("b"), []byte("1"), 1)

	if DigestsEqual(Digest(r1), Digest(r2)) {
		t.Fatalf("reordered content produced equal digests")
	}
}

func TestNilRecordDigest(t *testing.T) {
	empty := md5.New().Sum(nil)
	testing_helpers.AssertSliceEqual(t, "nil record", empty, Digest(nil))

	md := newTestMetadata()
	testing_helpers.AssertSliceEqual(t, "empty record", empty, Digest(NewRecord(md)))
}

func TestDigestWidth(t *testing.T) {
	testing_helpers.AssertEqual(t, "digest bytes", 16, len(Digest(nil)))
}

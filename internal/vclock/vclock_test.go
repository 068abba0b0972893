package vclock

import "testing"

func TestIncrementAndGet(t *testing.T) {
	c := New()
	if got := c.Get("a"); got != 0 {
		t.Fatalf("Get on empty clock = %d, want 0", got)
	}
	if got := c.Increment("a"); got != 1 {
		t.Fatalf("Increment = %d, want 1", got)
	}
	if got := c.Increment("a"); got != 2 {
		t.Fatalf("Increment = %d, want 2", got)
	}
	if got := c.Get("a"); got != 2 {
		t.Fatalf("Get = %d, want 2", got)
	}
}

func TestCompareEqual(t *testing.T) {
	a := Clock{"x": 1, "y": 2}
	b := Clock{"x": 1, "y": 2}
	if rel := a.Compare(b); rel != Equal {
		t.Fatalf("Compare = %s, want Equal", rel)
	}
}

func TestCompareBeforeAfter(t *testing.T) {
	a := Clock{"x": 1, "y": 2}
	b := Clock{"x": 1, "y": 3}
	if rel := a.Compare(b); rel != Before {
		t.Fatalf("a.Compare(b) = %s, want Before", rel)
	}
	if rel := b.Compare(a); rel != After {
		t.Fatalf("b.Compare(a) = %s, want After", rel)
	}
}

func TestCompareConcurrent(t *testing.T) {
	a := Clock{"x": 2, "y": 1}
	b := Clock{"x": 1, "y": 2}
	if rel := a.Compare(b); rel != Concurrent {
		t.Fatalf("Compare = %s, want Concurrent", rel)
	}
}

func TestCompareMissingEntriesTreatedAsZero(t *testing.T) {
	a := Clock{"x": 1}
	b := Clock{"x": 1, "y": 1}
	if rel := a.Compare(b); rel != Before {
		t.Fatalf("Compare = %s, want Before (b has y that a lacks)", rel)
	}
}

func TestMergeIsCommutative(t *testing.T) {
	a := Clock{"x": 3, "y": 1}
	b := Clock{"x": 1, "y": 5, "z": 2}

	ab := a.Merge(b)
	ba := b.Merge(a)

	if !ab.Equal(ba) {
		t.Fatalf("merge not commutative: a.Merge(b)=%v b.Merge(a)=%v", ab, ba)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	a := Clock{"x": 3, "y": 1}
	once := a.Merge(a)
	twice := once.Merge(a)
	if !once.Equal(twice) {
		t.Fatalf("merge not idempotent: once=%v twice=%v", once, twice)
	}
}

func TestMergeNeverRegresses(t *testing.T) {
	a := Clock{"x": 5}
	b := Clock{"x": 2}
	merged := a.Merge(b)
	if merged.Get("x") != 5 {
		t.Fatalf("merge regressed: got %d, want 5", merged.Get("x"))
	}
}

func TestCopyIsIndependent(t *testing.T) {
	a := Clock{"x": 1}
	b := a.Copy()
	b.Set("x", 99)
	if a.Get("x") != 1 {
		t.Fatalf("mutating copy affected original: %v", a)
	}
}

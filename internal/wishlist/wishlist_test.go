package wishlist

import (
	"sync"
	"testing"

	"github.com/xkmonitor/core/internal/models"
)

func entry(id string) models.WishlistEntry {
	return models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: id}}}
}

func TestAddIsIdempotentPerID(t *testing.T) {
	r := New()
	r.Add(entry("T1"))
	r.Add(entry("T1"))
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (uniqueness invariant I1)", r.Len())
	}
}

func TestRemoveThenContains(t *testing.T) {
	r := New()
	r.Add(entry("T1"))
	r.Remove("T1")
	if r.Contains("T1") {
		t.Error("expected T1 removed")
	}
	if !r.Empty() {
		t.Error("expected registry empty after removing sole entry")
	}
}

func TestSnapshotIsIndependentOfLiveMutation(t *testing.T) {
	r := New()
	r.Add(entry("T1"))
	snap := r.Snapshot()
	r.Add(entry("T2"))
	if len(snap) != 1 {
		t.Errorf("len(snapshot) = %d, want 1 (snapshot must not see later mutations)", len(snap))
	}
}

func TestConcurrentAddRemoveNeverDuplicates(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(entry("shared"))
		}()
	}
	wg.Wait()
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 under concurrent adds of the same id", r.Len())
	}
}

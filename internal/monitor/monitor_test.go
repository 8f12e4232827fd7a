package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xkmonitor/core/internal/catalog"
	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/grab"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/swap"
	"github.com/xkmonitor/core/internal/wishlist"
)

// fakeQuerier returns a fixed sequence of catalog.Result (and, once exhausted,
// repeats the last one) while counting calls.
type fakeQuerier struct {
	results []catalog.Result
	errs    []error
	calls   int32
}

func (f *fakeQuerier) Query(ctx context.Context, courseType models.CourseType, queryContent string) (catalog.Result, error) {
	i := int(atomic.AddInt32(&f.calls, 1)) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func (f *fakeQuerier) selectCalls() int { return int(atomic.LoadInt32(&f.calls)) }

// fakeSelector counts how many times Select is invoked and returns a fixed
// outcome; used to assert the no-blind-grab / ghost-capacity / safety
// predicate properties never invoke it when they shouldn't.
type fakeSelector struct {
	outcome grab.Outcome
	calls   int32
}

func (f *fakeSelector) Select(ctx context.Context, tcID string, courseType models.CourseType) grab.Result {
	atomic.AddInt32(&f.calls, 1)
	return grab.Result{Outcome: f.outcome}
}

func (f *fakeSelector) selectCalls() int { return int(atomic.LoadInt32(&f.calls)) }

type fakeSwapper struct{ calls int32 }

func (f *fakeSwapper) Run(ctx context.Context, target models.TeachingClassRecord, stopped func() bool) swap.Result {
	atomic.AddInt32(&f.calls, 1)
	return swap.Result{Reason: "not exercised"}
}

type fakeRecoverer struct{}

func (fakeRecoverer) Recover(ctx context.Context) bool   { return true }
func (fakeRecoverer) PermanentlyFailed() bool            { return false }

type collectingSink struct{ events []events.Event }

func (s *collectingSink) Emit(e events.Event) { s.events = append(s.events, e) }

func stoppedAfter(n int) func() bool {
	var calls int32
	return func() bool {
		return atomic.AddInt32(&calls, 1) > int32(n)
	}
}

const tcID = "tc-123"

// TestNoBlindGrab asserts spec.md §8 property 1: when the catalog never
// reports the watched teachingClassId, Select is never invoked.
func TestNoBlindGrab(t *testing.T) {
	wl := wishlist.New()
	wl.Add(models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: tcID}}})

	q := &fakeQuerier{results: []catalog.Result{
		{Outcome: session.OutcomeOK, Flat: nil}, // tcID never present
	}}
	sel := &fakeSelector{outcome: grab.OutcomeSuccess}
	sink := &collectingSink{}

	m := New(tcID, "", models.CourseTypeMajorProgram, wl, q, sel, &fakeSwapper{}, fakeRecoverer{}, sink, func() {})
	m.Run(context.Background(), stoppedAfter(3))

	if sel.selectCalls() != 0 {
		t.Fatalf("Select called %d times, want 0 (no blind grab on catalog miss)", sel.selectCalls())
	}
}

// TestGhostCapacityDefense asserts spec.md §8 property 2: isFull==true
// suppresses any select attempt regardless of a nonzero remain figure.
func TestGhostCapacityDefense(t *testing.T) {
	wl := wishlist.New()
	wl.Add(models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: tcID}}})

	record := models.TeachingClassRecord{
		ID:      models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
		IsFull:  true,
		Remain:  5, // ghost capacity: reported remain contradicts isFull
	}
	q := &fakeQuerier{results: []catalog.Result{
		{Outcome: session.OutcomeOK, Flat: []models.TeachingClassRecord{record}},
	}}
	sel := &fakeSelector{outcome: grab.OutcomeSuccess}
	sink := &collectingSink{}

	m := New(tcID, "", models.CourseTypeMajorProgram, wl, q, sel, &fakeSwapper{}, fakeRecoverer{}, sink, func() {})
	m.Run(context.Background(), stoppedAfter(3))

	if sel.selectCalls() != 0 {
		t.Fatalf("Select called %d times, want 0 (ghost-capacity defense)", sel.selectCalls())
	}
}

// TestSafetyPredicateGatesSelect asserts spec.md §8 property 3: select is
// invoked only when isFull==false && remain>0 && isChosen==false.
func TestSafetyPredicateGatesSelect(t *testing.T) {
	cases := []struct {
		name       string
		record     models.TeachingClassRecord
		wantSelect bool
	}{
		{
			name: "safe to select",
			record: models.TeachingClassRecord{
				ID:     models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
				Remain: 1,
			},
			wantSelect: true,
		},
		{
			name: "already chosen",
			record: models.TeachingClassRecord{
				ID:       models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
				Remain:   1,
				IsChosen: true,
			},
			wantSelect: false,
		},
		{
			name: "zero remain",
			record: models.TeachingClassRecord{
				ID:     models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
				Remain: 0,
			},
			wantSelect: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wl := wishlist.New()
			wl.Add(models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: tcID}}})

			q := &fakeQuerier{results: []catalog.Result{
				{Outcome: session.OutcomeOK, Flat: []models.TeachingClassRecord{tc.record}},
			}}
			sel := &fakeSelector{outcome: grab.OutcomeSuccess}
			sink := &collectingSink{}

			m := New(tcID, "", models.CourseTypeMajorProgram, wl, q, sel, &fakeSwapper{}, fakeRecoverer{}, sink, func() {})
			m.Run(context.Background(), stoppedAfter(3))

			got := sel.selectCalls() > 0
			if got != tc.wantSelect {
				t.Fatalf("Select invoked=%v, want %v", got, tc.wantSelect)
			}
		})
	}
}

// TestConflictInvokesSwapNotSelect asserts a catalog-reported conflict routes
// to the swap machine and never calls Select directly (spec.md §4.5 step 8).
func TestConflictInvokesSwapNotSelect(t *testing.T) {
	wl := wishlist.New()
	wl.Add(models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: tcID}}})

	record := models.TeachingClassRecord{
		ID:         models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
		Remain:     1,
		IsConflict: true,
	}
	q := &fakeQuerier{results: []catalog.Result{
		{Outcome: session.OutcomeOK, Flat: []models.TeachingClassRecord{record}},
	}}
	sel := &fakeSelector{outcome: grab.OutcomeSuccess}
	sw := &fakeSwapper{}
	sink := &collectingSink{}

	m := New(tcID, "", models.CourseTypeMajorProgram, wl, q, sel, sw, fakeRecoverer{}, sink, func() {})
	m.Run(context.Background(), stoppedAfter(3))

	if sel.selectCalls() != 0 {
		t.Fatalf("Select called %d times on conflict, want 0", sel.selectCalls())
	}
	if atomic.LoadInt32(&sw.calls) == 0 {
		t.Fatal("swap.Run was never invoked on a conflict record")
	}
}

// TestChosenRemovesFromWishlistAndStops asserts step 5: an already-chosen
// record removes the entry and ends the loop without ever selecting.
func TestChosenRemovesFromWishlistAndStops(t *testing.T) {
	wl := wishlist.New()
	wl.Add(models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: tcID}}})

	record := models.TeachingClassRecord{
		ID:       models.CourseID{TeachingClassID: tcID, CourseType: models.CourseTypeMajorProgram},
		Remain:   1,
		IsChosen: true,
	}
	q := &fakeQuerier{results: []catalog.Result{
		{Outcome: session.OutcomeOK, Flat: []models.TeachingClassRecord{record}},
	}}
	sel := &fakeSelector{outcome: grab.OutcomeSuccess}
	sink := &collectingSink{}

	m := New(tcID, "", models.CourseTypeMajorProgram, wl, q, sel, &fakeSwapper{}, fakeRecoverer{}, sink, func() {})

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after an isChosen record, expected immediate exit")
	}

	if wl.Contains(tcID) {
		t.Fatal("wishlist entry should have been removed after isChosen")
	}
	if sel.selectCalls() != 0 {
		t.Fatalf("Select called %d times, want 0 on isChosen", sel.selectCalls())
	}
}

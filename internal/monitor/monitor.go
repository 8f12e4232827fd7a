// Package monitor is the per-course monitor (C5): one logical worker per
// wishlist entry, polling capacity, enforcing the safety predicate, and
// triggering a grab or a swap. Grounded on the enrollment client's sequential
// doRequest-then-classify call shape, generalized into the 10-step polling
// contract of spec.md §4.5 and run as a lightweight goroutine per spec.md
// §9's "replacement for worker-per-course using thread objects".
package monitor

import (
	"context"
	"time"

	"github.com/xkmonitor/core/internal/catalog"
	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/grab"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/recovery"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/swap"
	"github.com/xkmonitor/core/internal/wishlist"
)

// idleSleep is the ≈1s idle-poll cadence spec.md §4.5 specifies.
const idleSleep = time.Second

// postAttemptSleep is the ≈0.3s sleep after a select attempt that didn't
// resolve the entry, per spec.md §5.
const postAttemptSleep = 300 * time.Millisecond

// Querier is the narrow slice of catalog.Client a monitor depends on.
type Querier interface {
	Query(ctx context.Context, courseType models.CourseType, queryContent string) (catalog.Result, error)
}

// Selector is the narrow slice of grab.Client a monitor depends on.
type Selector interface {
	Select(ctx context.Context, tcID string, courseType models.CourseType) grab.Result
}

// Swapper is the narrow slice of swap.Machine a monitor depends on.
type Swapper interface {
	Run(ctx context.Context, target models.TeachingClassRecord, stopped func() bool) swap.Result
}

// Recoverer is the narrow slice of recovery.Coordinator a monitor depends on.
type Recoverer interface {
	Recover(ctx context.Context) bool
	PermanentlyFailed() bool
}

// Monitor runs one wishlist entry's independent polling loop. Depending on
// narrow interfaces rather than the concrete catalog/grab/swap/recovery
// types lets the 10-step contract be driven by fakes in tests, per spec.md
// §9's "the core must be usable from a non-GUI harness for testing".
type Monitor struct {
	TeachingClassID string
	CourseNumber    string
	CourseType      models.CourseType

	wishlist  *wishlist.Registry
	catalog   Querier
	grab      Selector
	swap      Swapper
	recovery  Recoverer
	sink      events.Sink
	heartbeat func()

	log   logging.Logger
	state models.MonitorState // owned exclusively by this goroutine, per R4
}

// New builds a monitor for one wishlist entry.
func New(
	tcID string,
	courseNumber string,
	courseType models.CourseType,
	wl *wishlist.Registry,
	cat Querier,
	grabClient Selector,
	swapMachine Swapper,
	recoveryCoord Recoverer,
	sink events.Sink,
	heartbeat func(),
) *Monitor {
	return &Monitor{
		TeachingClassID: tcID,
		CourseNumber:    courseNumber,
		CourseType:      courseType,
		wishlist:        wl,
		catalog:         cat,
		grab:            grabClient,
		swap:            swapMachine,
		recovery:        recoveryCoord,
		sink:            sink,
		heartbeat:       heartbeat,
		log:             logging.New().Named("monitor").Named(tcID),
		state:           models.NewMonitorState(),
	}
}

// Run executes the monitor loop until the entry leaves the wishlist, a
// terminal outcome is reached, or ctx is cancelled. It never panics: every
// branch maps directly to spec.md §4.5's numbered steps.
func (m *Monitor) Run(ctx context.Context, stopped func() bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if stopped != nil && stopped() {
			return
		}

		// Step 1: confirm still in the wishlist.
		if !m.wishlist.Contains(m.TeachingClassID) {
			return
		}

		// Step 2: query + heartbeat.
		m.heartbeat()
		queryContent := m.CourseNumber
		if queryContent == "" {
			queryContent = m.TeachingClassID
		}
		result, err := m.catalog.Query(ctx, m.CourseType, queryContent)

		// Step 3: session-expired handling.
		if err == nil && result.Outcome == session.OutcomeSessionExpired {
			if !m.recovery.Recover(ctx) {
				if m.recovery.PermanentlyFailed() {
					m.sink.Emit(events.Event{Type: events.TypeNeedRelogin})
					return
				}
			}
			m.sleep(ctx, postAttemptSleep)
			continue
		}
		if err != nil || result.Outcome != session.OutcomeOK {
			m.sleep(ctx, idleSleep)
			continue
		}

		// Step 4: "not found" -> do nothing, no blind grab.
		record, found := catalog.FindByTeachingClassID(result, m.TeachingClassID)
		if !found {
			m.setStatus(models.StatusQueryFailed, "no catalog entry this iteration, skipping (no blind grab)")
			m.sleep(ctx, idleSleep)
			continue
		}

		// Step 5: already chosen.
		if record.IsChosen {
			m.setStatus(models.StatusChosen, "already chosen")
			m.wishlist.Remove(m.TeachingClassID)
			return
		}

		// Step 6: ghost-capacity check, highest priority.
		if record.IsFull {
			m.setStatus(models.StatusGhostCapacity, "ghost capacity: isFull despite any reported remain")
			m.sleep(ctx, idleSleep)
			continue
		}

		// Step 7: safety predicate, gates step 8 below — a record with no
		// seats never reaches the swap branch, conflict or not.
		if !record.HasSeats() {
			m.setStatus(models.StatusFull, "no seats currently reported")
			m.sleep(ctx, idleSleep)
			continue
		}

		// Step 8: a catalog-reported conflict skips straight to swap instead
		// of wasting a select call.
		if record.IsConflict {
			m.setStatus(models.StatusConflict, "catalog reported conflict, invoking swap")
			m.runSwap(ctx, record, stopped)
			continue
		}

		m.setStatus(models.StatusAvailable, "seats available, attempting select")
		m.sink.Emit(events.Event{
			Type:        events.TypeAvailabilityDetected,
			CourseName:  record.CourseName,
			TeacherName: record.TeacherName,
			Remain:      record.Remain,
			Capacity:    record.Capacity,
		})

		// Step 9: invoke C6 select.
		selectResult := m.grab.Select(ctx, m.TeachingClassID, m.CourseType)
		switch selectResult.Outcome {
		case grab.OutcomeSuccess:
			m.wishlist.Remove(m.TeachingClassID)
			rec := record
			m.sink.Emit(events.Event{Type: events.TypeGrabSuccess, Record: &rec})
			return
		case grab.OutcomeNeedRollback:
			m.runSwap(ctx, record, stopped)
			continue
		case grab.OutcomeSessionExpired:
			if !m.recovery.Recover(ctx) && m.recovery.PermanentlyFailed() {
				m.sink.Emit(events.Event{Type: events.TypeNeedRelogin})
				return
			}
			m.sleep(ctx, postAttemptSleep)
			continue
		case grab.OutcomeFull, grab.OutcomeOtherError:
			m.sleep(ctx, postAttemptSleep)
			continue
		}
	}
}

func (m *Monitor) runSwap(ctx context.Context, record models.TeachingClassRecord, stopped func() bool) {
	result := m.swap.Run(ctx, record, stopped)
	if result.TargetAcquired {
		m.wishlist.Remove(m.TeachingClassID)
		rec := record
		m.sink.Emit(events.Event{Type: events.TypeGrabSuccess, Record: &rec})
		return
	}
	if result.Dangling {
		dropped := ""
		if result.DroppedSection != nil {
			dropped = result.DroppedSection.ID.TeachingClassID
		}
		m.sink.Emit(events.Event{Type: events.TypeSwapDangling, DroppedTeachingClassID: dropped})
		return
	}
	m.sink.Emit(events.Event{Type: events.TypeGrabFailed, Text: result.Reason, CourseName: record.CourseName})
}

// setStatus emits a status event only when the tag changed since the last
// iteration, per spec.md §3's "used only to suppress duplicate log events".
func (m *Monitor) setStatus(tag models.StatusTag, text string) {
	if m.state.LastStatusTag == tag {
		return
	}
	m.state.LastStatusTag = tag
	m.sink.Emit(events.Event{Type: events.TypeStatus, Text: text})
}

// sleep is a cancellable sleep bounded by ctx, so the monitor's stop signal
// takes effect within at most one sleep interval (spec.md §5).
func (m *Monitor) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

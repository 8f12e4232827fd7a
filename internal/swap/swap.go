// Package swap implements the conflict-resolution state machine (C7):
// LOCATE the held course conflicting with a target, DROP it, TAKE the
// target, VERIFY, and on failure RECOVER by re-acquiring the dropped course
// under a hard 300s deadline (spec.md §4.7, I5). Grounded on the
// enrollment client's own sequential doRequest-then-parse call shape,
// generalized to a multi-step state machine with an explicit emergency
// path — spec.md §9's call for value-returned outcomes rather than
// exception-driven control flow applies here too: every state transition is
// a plain Go value, never a panic/recover.
package swap

import (
	"context"
	"strings"
	"time"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/grab"
	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/timeslot"
)

// rollbackDeadline is the hard 300s (5 minute) deadline spec.md §4.7's
// RECOVER state enforces; the 305s in §8 property 7 is this plus the bounded
// tail of one rollback-interval sleep.
const rollbackDeadline = 300 * time.Second

// rollbackInterval is the ≈0.7s cadence spec.md §4.7 specifies for the
// emergency-rollback retry loop.
const rollbackInterval = 700 * time.Millisecond

// Result is the swap protocol's terminal outcome (spec.md §4.7's
// "(targetAcquired: bool, droppedSection: view|null)").
type Result struct {
	TargetAcquired bool
	DroppedSection *models.SelectedCourseView
	RollbackSucceeded bool
	Dangling       bool
	Reason         string
}

// Machine runs the swap state machine over a session core and a heartbeat
// counter shared with the scheduler (spec.md §4.7's "incrementing the global
// heartbeat" during RECOVER).
type Machine struct {
	session   *session.Client
	grab      *grab.Client
	sink      events.Sink
	heartbeat func()
	log       logging.Logger
}

// New builds a swap state machine.
func New(sess *session.Client, grabClient *grab.Client, sink events.Sink, heartbeat func()) *Machine {
	if heartbeat == nil {
		heartbeat = func() {}
	}
	return &Machine{session: sess, grab: grabClient, sink: sink, heartbeat: heartbeat, log: logging.New().Named("swap")}
}

// Run executes the full swap protocol for one conflicting target. stopped is
// polled during the RECOVER loop so a scheduler shutdown can end it early
// (exit condition (iii) of spec.md §4.7).
func (m *Machine) Run(ctx context.Context, target models.TeachingClassRecord, stopped func() bool) Result {
	start := time.Now()
	defer func() { instrumentation.RecordSwap(ctx, swapOutcomeLabel(start)) }()

	lr, err := m.session.ListSelected(ctx)
	if err != nil || lr.Outcome != session.OutcomeOK {
		m.log.Warn("swap: failed to list held sections", err)
		return Result{Reason: "cannot locate: failed to list held sections"}
	}

	candidate, ok := locate(lr.Views, target.ConflictDesc)
	if !ok {
		m.log.Info("swap: could not locate a conflicting held section", "conflictDesc", target.ConflictDesc)
		return Result{Reason: "cannot locate"}
	}

	dropResult, err := m.session.Drop(ctx, candidate.ID.TeachingClassID)
	if err != nil || dropResult.Outcome != session.OutcomeOK || !dropResult.Success {
		m.log.Warn("swap: drop failed, no state change", err, "held", candidate.ID.TeachingClassID)
		return Result{Reason: "drop failed"}
	}

	takeResult := m.grab.Select(ctx, target.ID.TeachingClassID, target.ID.CourseType)
	if takeResult.Outcome == grab.OutcomeSuccess {
		return Result{TargetAcquired: true, DroppedSection: &candidate}
	}

	m.log.Warn("swap: take failed after drop succeeded, entering emergency rollback", nil,
		"dropped", candidate.ID.TeachingClassID, "target", target.ID.TeachingClassID)
	return m.recover(ctx, candidate, stopped)
}

// locate ranks held sections against conflictDesc per spec.md §4.7's ordered
// strategies (a)-(e), returning the first strategy's result.
func locate(held []models.SelectedCourseView, conflictDesc string) (models.SelectedCourseView, bool) {
	if len(held) == 0 {
		return models.SelectedCourseView{}, false
	}

	// (a) exact name substring of conflictDesc
	for _, h := range held {
		if h.CourseName != "" && strings.Contains(conflictDesc, h.CourseName) {
			return h, true
		}
	}

	// (b) bracketed token in conflictDesc matching held name
	for _, token := range bracketedTokens(conflictDesc) {
		for _, h := range held {
			if h.CourseName == token {
				return h, true
			}
		}
	}

	// (c) held-name prefix of >=4 chars appearing in conflictDesc
	for _, h := range held {
		name := []rune(h.CourseName)
		if len(name) >= 4 && strings.Contains(conflictDesc, string(name[:4])) {
			return h, true
		}
	}

	// (d) structural time-slot overlap
	for _, h := range held {
		if timeslot.StringsConflict(h.TimeAndPlace, conflictDesc) {
			return h, true
		}
	}

	// (e) exactly one course held: adopt it
	if len(held) == 1 {
		return held[0], true
	}

	return models.SelectedCourseView{}, false
}

// bracketedTokens extracts substrings enclosed in the bracket pairs commonly
// used by the portal's conflictDesc text, e.g. "...[数据结构]...".
func bracketedTokens(s string) []string {
	var tokens []string
	openers := map[rune]rune{'[': ']', '【': '】', '(': ')', '（': '）'}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		closer, isOpener := openers[runes[i]]
		if !isOpener {
			continue
		}
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == closer {
				tokens = append(tokens, string(runes[i+1:j]))
				break
			}
		}
	}
	return tokens
}

// recover is the RECOVER state: repeatedly re-select the dropped section at
// ≈0.7s intervals until it succeeds, stop is requested, or the 300s deadline
// elapses (spec.md §4.7's four exit conditions, in priority order).
func (m *Machine) recover(ctx context.Context, dropped models.SelectedCourseView, stopped func() bool) Result {
	deadline := time.Now().Add(rollbackDeadline)
	ticker := time.NewTicker(rollbackInterval)
	defer ticker.Stop()

	for {
		m.heartbeat()

		result := m.grab.Select(ctx, dropped.ID.TeachingClassID, dropped.CourseType)
		if result.Outcome == grab.OutcomeSuccess {
			instrumentation.RecordRollback(ctx, time.Since(deadline.Add(-rollbackDeadline)), true)
			return Result{TargetAcquired: false, DroppedSection: &dropped, RollbackSucceeded: true,
				Reason: "rollback succeeded: re-acquired dropped section"}
		}

		if stopped != nil && stopped() {
			m.sink.Emit(events.Event{Type: events.TypeSwapDangling, DroppedTeachingClassID: dropped.ID.TeachingClassID})
			return Result{Dangling: true, DroppedSection: &dropped, Reason: "stop requested during rollback"}
		}

		if time.Now().After(deadline) {
			instrumentation.RecordRollback(ctx, rollbackDeadline, false)
			m.sink.Emit(events.Event{Type: events.TypeSwapDangling, DroppedTeachingClassID: dropped.ID.TeachingClassID})
			return Result{Dangling: true, DroppedSection: &dropped, Reason: "rollback deadline exceeded"}
		}

		select {
		case <-ctx.Done():
			return Result{Dangling: true, DroppedSection: &dropped, Reason: "context cancelled during rollback"}
		case <-ticker.C:
		}
	}
}

func swapOutcomeLabel(start time.Time) string {
	if time.Since(start) > rollbackDeadline {
		return "rollback_deadline_exceeded"
	}
	return "completed"
}

// Package grab implements the grab protocol (C6): submit the select call,
// classify the outcome, and post-verify a reported success by listing the
// student's held sections. Grounded on the enrollment client's own
// doRequest+parse pairing pattern — one call, one classify step, one
// optional follow-up read.
package grab

import (
	"context"

	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
)

// Outcome classifies a grab attempt's terminal result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAlreadySelected
	OutcomeNeedRollback
	OutcomeFull
	OutcomeSessionExpired
	OutcomeOtherError
)

// Result is one grab attempt's full outcome.
type Result struct {
	Outcome Outcome
	Msg     string
}

// Client runs the grab protocol over a session core.
type Client struct {
	session *session.Client
}

// New builds a grab client.
func New(sess *session.Client) *Client {
	return &Client{session: sess}
}

// Select submits the select call for tcID and, on a reported success,
// post-verifies membership via listSelected. Per spec.md §4.6: a post-verify
// that cannot be performed (network error) is treated optimistically — the
// caller accepts the server's reported success rather than flipping it to
// failure. select is idempotent: "already selected" maps to success too.
func (c *Client) Select(ctx context.Context, tcID string, courseType models.CourseType) Result {
	sr, err := c.session.Select(ctx, tcID, courseType)
	if err != nil {
		instrumentation.RecordGrab(ctx, "network_error", courseType.String())
		return Result{Outcome: OutcomeOtherError, Msg: err.Error()}
	}

	switch sr.Outcome {
	case session.OutcomeSessionExpired:
		instrumentation.RecordGrab(ctx, "session_expired", courseType.String())
		return Result{Outcome: OutcomeSessionExpired}
	case session.OutcomeNetworkError:
		instrumentation.RecordGrab(ctx, "network_error", courseType.String())
		return Result{Outcome: OutcomeOtherError, Msg: sr.Msg}
	}

	if sr.Success {
		if c.postVerify(ctx, tcID) {
			instrumentation.RecordGrab(ctx, "success", courseType.String())
			return Result{Outcome: OutcomeSuccess, Msg: sr.Msg}
		}
		instrumentation.RecordGrab(ctx, "verify_failed", courseType.String())
		return Result{Outcome: OutcomeOtherError, Msg: "select reported success but post-verify did not find the section among held sections"}
	}
	if sr.NeedRollback {
		instrumentation.RecordGrab(ctx, "need_rollback", courseType.String())
		return Result{Outcome: OutcomeNeedRollback, Msg: sr.Msg}
	}
	if sr.Full {
		instrumentation.RecordGrab(ctx, "full", courseType.String())
		return Result{Outcome: OutcomeFull, Msg: sr.Msg}
	}
	instrumentation.RecordGrab(ctx, "other_error", courseType.String())
	return Result{Outcome: OutcomeOtherError, Msg: sr.Msg}
}

// postVerify lists held sections and checks membership. A post-verify that
// cannot be performed at all (network error, non-OK session outcome) is
// treated optimistically per spec.md §4.6: the caller accepts the server's
// reported success rather than flipping it to failure. Only a verify that
// DID run and came back without the section is reported as not verified.
func (c *Client) postVerify(ctx context.Context, tcID string) bool {
	lr, err := c.session.ListSelected(ctx)
	if err != nil || lr.Outcome != session.OutcomeOK {
		return true
	}
	for _, v := range lr.Views {
		if v.ID.TeachingClassID == tcID {
			return true
		}
	}
	return false
}

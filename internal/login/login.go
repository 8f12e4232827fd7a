// Package login implements the captcha-login flow (C2): a deterministic
// cookie → vtoken → captcha-image → OCR → login sequence with inner retries
// on captcha misrecognition, adapted from the enrollment client's own
// login() method — generalized from "retry inline and return one error" to
// "return a classified Outcome the recovery coordinator (C3) can act
// on", per spec.md §9's replacement for exception-driven control flow.
package login

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/ocr"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/xkerrors"
)

// maxCaptchaRetries bounds the inner captcha-misrecognition retry loop,
// per spec.md §4.2.
const maxCaptchaRetries = 5

// Flow runs the captcha-login sequence against a session.Client.
type Flow struct {
	Session *session.Client
	Solver  ocr.Solver
	log     logging.Logger
}

// New builds a login flow bound to the given session client and OCR solver.
func New(sess *session.Client, solver ocr.Solver) *Flow {
	return &Flow{Session: sess, Solver: solver, log: logging.New().Named("login")}
}

// Outcome classifies the result of one Flow.Login call.
type Outcome struct {
	Success   bool
	Permanent bool // credentials/account rejected; caller must latch and stop retrying
	Session   models.Session
	Err       error
}

// Login runs the full sequence once: index → vtoken → captcha → OCR → login,
// with up to maxCaptchaRetries inner attempts when the portal reports the
// captcha itself was misread (not the credentials).
func (f *Flow) Login(ctx context.Context, creds models.Credentials) Outcome {
	start := time.Now()
	defer func() {
		instrumentation.RecordLogin(ctx, "attempted")
	}()

	if _, err := f.Session.FetchIndex(ctx); err != nil {
		f.log.Warn("failed to fetch index page", err)
		instrumentation.RecordLogin(ctx, "network_error")
		return Outcome{Err: xkerrors.Wrap(xkerrors.KindTransientNetwork, err)}
	}

	if skew, ok := f.Session.ProbeServerTime(ctx); ok {
		snap := f.Session.Snapshot()
		snap.ServerTimeSkew = skew
		f.Session.Update(snap)
	}

	for attempt := 1; attempt <= maxCaptchaRetries; attempt++ {
		outcome := f.attempt(ctx, creds)
		if outcome.Success || outcome.Permanent {
			instrumentation.RecordCaptchaSolve(ctx, time.Since(start), outcome.Success)
			if outcome.Permanent {
				instrumentation.RecordLogin(ctx, "permanent_failure")
			} else {
				instrumentation.RecordLogin(ctx, "success")
			}
			return outcome
		}
		if !isCaptchaMisrecognition(outcome.Err) {
			instrumentation.RecordLogin(ctx, "failure")
			return outcome
		}
		f.log.Debug("captcha misrecognized, retrying", "attempt", attempt)
	}

	instrumentation.RecordLogin(ctx, "captcha_exhausted")
	return Outcome{Err: xkerrors.CaptchaMisrecognized()}
}

func (f *Flow) attempt(ctx context.Context, creds models.Credentials) Outcome {
	vtoken, err := f.Session.FetchVToken(ctx)
	if err != nil || vtoken == "" {
		f.log.Warn("failed to fetch vtoken", err)
		return Outcome{Err: xkerrors.Wrap(xkerrors.KindTransientNetwork, err)}
	}

	image, err := f.Session.FetchCaptchaImage(ctx, vtoken)
	if err != nil {
		f.log.Warn("failed to fetch captcha image", err)
		return Outcome{Err: xkerrors.Wrap(xkerrors.KindTransientNetwork, err)}
	}

	code, err := f.Solver.Solve(ctx, image)
	if err != nil {
		f.log.Warn("captcha solver failed", err)
		return Outcome{Err: xkerrors.CaptchaMisrecognized()}
	}

	result, err := f.Session.SubmitLogin(ctx, creds.StudentID, creds.Password, code, vtoken)
	if err != nil {
		return Outcome{Err: err}
	}

	if result.Success {
		// Start from the live snapshot rather than a bare struct literal, so
		// fields this call doesn't touch (ServerTimeSkew, and CampusCode/
		// BatchCode when the portal's login response omits them) survive the
		// wholesale Update a caller applies to outcome.Session.
		sess := f.Session.Snapshot()
		sess.Token = result.Token
		sess.Cookies = f.Session.CaptureCookies()
		sess.StudentCode = result.Code
		sess.StudentName = result.Name
		if result.CampusCode != "" {
			sess.CampusCode = result.CampusCode
		}
		if result.BatchCode != "" {
			sess.BatchCode = result.BatchCode
		}
		return Outcome{Success: true, Session: sess}
	}

	if isPermanentFailureMsg(result.Msg) {
		klog.Warningf("login: permanent failure signaled by portal: %s", redactMsg(result.Msg))
		return Outcome{Permanent: true, Err: xkerrors.PermanentAuthFailure(result.Msg)}
	}

	if isCaptchaMisrecognitionMsg(result.Msg) {
		return Outcome{Err: xkerrors.CaptchaMisrecognized()}
	}

	return Outcome{Err: xkerrors.New(xkerrors.KindSessionExpired, "login failed: %s", result.Msg)}
}

func isPermanentFailureMsg(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "password") || strings.Contains(lower, "account") ||
		strings.Contains(msg, "密码") || strings.Contains(msg, "账号") || strings.Contains(msg, "账户")
}

func isCaptchaMisrecognitionMsg(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "captcha") || strings.Contains(msg, "验证码")
}

func isCaptchaMisrecognition(err error) bool {
	return xkerrors.Is(err, xkerrors.KindCaptchaMisrecognized)
}

// redactMsg avoids echoing anything that might carry a password fragment
// back-pasted into an error message by the portal; logged at warning level
// only as a classification hint, not reproduced verbatim elsewhere.
func redactMsg(msg string) string {
	if len(msg) > 40 {
		return msg[:40] + "..."
	}
	return msg
}

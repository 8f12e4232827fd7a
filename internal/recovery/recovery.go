// Package recovery implements the session-recovery coordinator (C3): a
// single-flight gate around the captcha-login flow so that when multiple
// monitors observe session expiry at once, exactly one login flow runs and
// the rest await its outcome, per spec.md §4.3. Grounded on the enrollment
// client's own login() mutex-guarded throttle, generalized from "one mutex
// guarding one client's login state" to "one singleflight group shared by
// every monitor goroutine", using golang.org/x/sync/singleflight the way
// other services in the source pack use it to collapse concurrent duplicate
// work.
package recovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/login"
	"github.com/xkmonitor/core/internal/models"
)

// maxLoginAttempts bounds how many C2 invocations one recovery run performs
// before giving up (spec.md §4.3: "up to 3 login attempts").
const maxLoginAttempts = 3

// waitBound is how long a caller that did not initiate the in-flight
// recovery will wait for it before giving up (spec.md §4.3's ≈30s bound).
const waitBound = 30 * time.Second

// Coordinator is the single-flight recovery gate.
type Coordinator struct {
	flow  *login.Flow
	sink  events.Sink
	group singleflight.Group
	log   logging.Logger

	mu        sync.Mutex
	permanent bool
	creds     models.Credentials
}

// New builds a Coordinator over the given login flow and credentials.
func New(flow *login.Flow, creds models.Credentials, sink events.Sink) *Coordinator {
	return &Coordinator{flow: flow, sink: sink, creds: creds, log: logging.New().Named("recovery")}
}

// PermanentlyFailed reports whether the credentials-rejected latch is set
// (spec.md R5): once true, it is only cleared by SetCredentials.
func (c *Coordinator) PermanentlyFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permanent
}

// SetCredentials supplies fresh credentials and clears the permanent-failure
// latch, the only way spec.md R5 permits clearing it.
func (c *Coordinator) SetCredentials(creds models.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
	c.permanent = false
}

// Recover runs, or awaits, the single in-flight recovery. Returns true if the
// session was (re)established, false if recovery failed or is permanently
// latched closed.
func (c *Coordinator) Recover(ctx context.Context) bool {
	if c.PermanentlyFailed() {
		return false
	}

	resultCh := make(chan bool, 1)
	go func() {
		v, _, _ := c.group.Do("recover", func() (interface{}, error) {
			return c.runRecovery(ctx), nil
		})
		resultCh <- v.(bool)
	}()

	select {
	case ok := <-resultCh:
		return ok
	case <-time.After(waitBound):
		c.log.Warn("recovery wait exceeded bound, reporting failure to this caller", nil)
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) runRecovery(ctx context.Context) bool {
	c.mu.Lock()
	if c.permanent {
		c.mu.Unlock()
		return false
	}
	creds := c.creds
	c.mu.Unlock()

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		outcome := c.flow.Login(ctx, creds)
		if outcome.Success {
			c.flow.Session.Update(outcome.Session)
			c.sink.Emit(events.Event{
				Type:    events.TypeSessionUpdated,
				Token:   outcome.Session.Token,
				Cookies: outcome.Session.Cookies,
			})
			c.log.Info("session recovered", "attempt", attempt)
			return true
		}
		if outcome.Permanent {
			c.mu.Lock()
			c.permanent = true
			c.mu.Unlock()
			c.sink.Emit(events.Event{Type: events.TypeNeedRelogin})
			c.log.Error(outcome.Err, "permanent auth failure, latching recovery closed")
			return false
		}
		c.log.Warn("login attempt failed, retrying", outcome.Err, "attempt", attempt)
	}

	return false
}

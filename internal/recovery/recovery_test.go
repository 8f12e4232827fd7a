package recovery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/login"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/ocr"
	"github.com/xkmonitor/core/internal/session"
)

// countingSolver counts how many times Solve is invoked, standing in for C2
// invocation counts since the login flow's network calls can't run in a unit
// test without a live portal.
type countingSolver struct {
	calls int32
}

func (s *countingSolver) Solve(ctx context.Context, image []byte) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return "abcd", nil
}

type capturingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *capturingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *capturingSink) count(t events.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestCoordinator(t *testing.T) (*Coordinator, *capturingSink) {
	t.Helper()
	sess, err := session.NewClient()
	if err != nil {
		t.Fatalf("session.NewClient() error = %v", err)
	}
	flow := login.New(sess, &countingSolver{})
	sink := &capturingSink{}
	coord := New(flow, models.Credentials{StudentID: "s1", Password: "p1"}, sink)
	return coord, sink
}

func TestPermanentLatchBlocksFurtherRecovery(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.mu.Lock()
	coord.permanent = true
	coord.mu.Unlock()

	if coord.Recover(context.Background()) {
		t.Fatal("Recover() should return false when permanently latched")
	}
}

func TestSetCredentialsClearsLatch(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.mu.Lock()
	coord.permanent = true
	coord.mu.Unlock()

	coord.SetCredentials(models.Credentials{StudentID: "s2", Password: "p2"})
	if coord.PermanentlyFailed() {
		t.Fatal("PermanentlyFailed() should be false after SetCredentials")
	}
}

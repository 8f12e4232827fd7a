// Package scheduler is the supervisor (C9): it spawns one monitor per
// wishlist entry, watches for additions at a fixed cadence, periodically
// probes the session's liveness, and joins every monitor goroutine on
// shutdown. Grounded on the same errgroup-joined goroutine-set shape
// golang.org/x/sync/singleflight's sibling package is built for, generalized
// from "one in-flight recovery" to "a dynamically growing pool of monitor
// goroutines that must all be joinable on stop".
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/wishlist"
)

// addDetectInterval is the ≈500ms cadence at which the supervisor looks for
// newly-added wishlist entries, per spec.md §4.10.
const addDetectInterval = 500 * time.Millisecond

// loginProbeInterval is the ≈60s cadence for the periodic liveness probe.
const loginProbeInterval = 60 * time.Second

// heartbeatFlushCount and heartbeatFlushInterval bound how often a heartbeat
// event is emitted for UI liveness: every 10 increments or 5s, whichever
// comes first, per spec.md §4.10.
const (
	heartbeatFlushCount    = 10
	heartbeatFlushInterval = 5 * time.Second
)

// MonitorFactory builds a Monitor for one wishlist entry. The scheduler is
// generic over it so tests can substitute a fake monitor that never touches
// the network.
type MonitorFactory func(entry models.WishlistEntry) Runner

// Runner is the slice of *monitor.Monitor the scheduler actually calls.
type Runner interface {
	Run(ctx context.Context, stopped func() bool)
}

// LoginProber is the slice of *session.Client the periodic probe needs.
type LoginProber interface {
	ProbeLogin(ctx context.Context) (session.Outcome, error)
}

// Recoverer is the slice of *recovery.Coordinator the probe acts on.
type Recoverer interface {
	Recover(ctx context.Context) bool
}

// Scheduler owns the set of running monitors and the supervisor loop that
// spawns new ones, probes liveness, and bumps the global heartbeat counter.
type Scheduler struct {
	wishlist *wishlist.Registry
	factory  MonitorFactory
	prober   LoginProber
	recovery Recoverer
	sink     events.Sink
	log      logging.Logger

	heartbeat     int64
	lastFlush     time.Time // guarded by flushMu
	flushMu       sync.Mutex
	spawned       map[string]struct{}
	spawnedMu     sync.Mutex
	stopRequested int32
}

// New builds a Scheduler. factory constructs a Runner (ordinarily a
// *monitor.Monitor) for a freshly-added wishlist entry.
func New(wl *wishlist.Registry, factory MonitorFactory, prober LoginProber, recoveryCoord Recoverer, sink events.Sink) *Scheduler {
	return &Scheduler{
		wishlist: wl,
		factory:  factory,
		prober:   prober,
		recovery: recoveryCoord,
		sink:     sink,
		log:      logging.New().Named("scheduler"),
		lastFlush: time.Now(),
		spawned:  make(map[string]struct{}),
	}
}

// stopped reports whether Stop has been called; passed down to every
// monitor and the swap machine's rollback loop as the stop signal.
func (s *Scheduler) stopped() bool {
	return atomic.LoadInt32(&s.stopRequested) != 0
}

// Stop signals every running monitor to finish its current iteration and
// exit. Run's caller is responsible for joining (Run returns once every
// monitor has exited or the join timeout elapses).
func (s *Scheduler) Stop() {
	atomic.StoreInt32(&s.stopRequested, 1)
}

// Run starts one monitor per existing wishlist entry and then runs the
// supervisor loop until ctx is cancelled, Stop is called, or the wishlist
// empties out. It blocks until every spawned monitor has returned (bounded
// by joinTimeout once a stop is observed).
func (s *Scheduler) Run(ctx context.Context, joinTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	for _, entry := range s.wishlist.Snapshot() {
		s.spawn(g, gctx, entry)
	}

	addTicker := time.NewTicker(addDetectInterval)
	defer addTicker.Stop()
	probeTicker := time.NewTicker(loginProbeInterval)
	defer probeTicker.Stop()

supervise:
	for {
		select {
		case <-ctx.Done():
			break supervise
		case <-addTicker.C:
			if s.stopped() || s.wishlist.Empty() {
				break supervise
			}
			for _, entry := range s.wishlist.Snapshot() {
				s.spawn(g, gctx, entry)
			}
		case <-probeTicker.C:
			s.probeLogin(gctx)
		}
		if s.stopped() {
			break
		}
	}

	cancel() // signal every monitor goroutine to unwind promptly

	joined := make(chan error, 1)
	go func() { joined <- g.Wait() }()

	select {
	case err := <-joined:
		return err
	case <-time.After(joinTimeout):
		s.log.Warn("monitor join timed out, returning without waiting further", nil)
		return nil
	}
}

// spawn starts a monitor for entry if one isn't already running for its
// teachingClassId; removed entries simply fail the monitor's own step-1
// wishlist-membership check on their next iteration, per spec.md §4.5.
func (s *Scheduler) spawn(g *errgroup.Group, ctx context.Context, entry models.WishlistEntry) {
	id := entry.ID()
	s.spawnedMu.Lock()
	if _, running := s.spawned[id]; running {
		s.spawnedMu.Unlock()
		return
	}
	s.spawned[id] = struct{}{}
	s.spawnedMu.Unlock()

	runner := s.factory(entry)
	g.Go(func() error {
		runner.Run(ctx, s.stopped)
		s.spawnedMu.Lock()
		delete(s.spawned, id)
		s.spawnedMu.Unlock()
		return nil
	})
}

// probeLogin invokes the periodic liveness probe and, on expiry, triggers
// recovery; a probe that itself fails to reach the recovery coordinator
// (e.g. because recovery is already latched shut) is otherwise a no-op,
// since each monitor's own session-expired handling will also fire.
func (s *Scheduler) probeLogin(ctx context.Context) {
	outcome, err := s.prober.ProbeLogin(ctx)
	if err == nil && outcome == session.OutcomeSessionExpired {
		s.recovery.Recover(ctx)
	}
}

// Heartbeat bumps the monotonic counter bumped on every enrollment HTTP call
// across all monitors (spec.md §4.10) and flushes a heartbeat event every 10
// increments or 5s, whichever comes first.
func (s *Scheduler) Heartbeat() {
	count := atomic.AddInt64(&s.heartbeat, 1)
	instrumentation.RecordHeartbeat(context.Background(), 1)

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	now := time.Now()
	if count%heartbeatFlushCount == 0 || now.Sub(s.lastFlush) >= heartbeatFlushInterval {
		s.lastFlush = now
		s.sink.Emit(events.Event{Type: events.TypeHeartbeat, Count: count})
	}
}

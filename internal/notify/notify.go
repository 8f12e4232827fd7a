// Package notify is the outbound notifier (C15): a best-effort webhook POST
// on terminal events, exactly as spec.md §6 describes it. Grounded on the
// enrollment client's own doRequest shape (build request, set a short
// timeout, fire, discard the body), generalized to a fire-and-forget
// one-way call whose failures never propagate back into the core.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/logging"
)

// endpointFormat is the ServerChan-compatible push webhook spec.md §6 names;
// %s is the push key.
const endpointFormat = "https://sctapi.ftqq.com/%s.send"

// timeout bounds the webhook call so a slow/unreachable notifier never
// stalls the caller; spec.md §6 calls for "short timeouts".
const timeout = 5 * time.Second

// Notifier posts best-effort webhook notifications for the events spec.md
// flags as needing strong prominence: need-relogin and swap-dangling.
type Notifier struct {
	key            string
	endpointFormat string // overridden in tests to point at a local server
	client         *http.Client
	log            logging.Logger
}

// New builds a Notifier. An empty key disables every Notify call (treated as
// "notifications not configured", not an error).
func New(key string) *Notifier {
	return &Notifier{
		key:            key,
		endpointFormat: endpointFormat,
		client:         &http.Client{Timeout: timeout},
		log:            logging.New().Named("notify"),
	}
}

// Sink adapts Notifier to events.Sink, filtering down to the two event types
// worth an external push and notifying in a detached goroutine so the core's
// own event emission is never blocked on network I/O.
func (n *Notifier) Sink() events.Sink {
	return events.SinkFunc(func(e events.Event) {
		switch e.Type {
		case events.TypeNeedRelogin:
			go n.send(context.Background(), "xkmonitor: re-login required",
				"The recovery coordinator has latched a permanent authentication failure. "+
					"Manual intervention is required to resume monitoring.")
		case events.TypeSwapDangling:
			go n.send(context.Background(), "xkmonitor: swap left dangling",
				fmt.Sprintf("A conflict-resolution swap dropped teaching class `%s` and could not "+
					"reacquire it within the rollback deadline. Check your enrolled sections manually.",
					e.DroppedTeachingClassID))
		}
	})
}

// Notify posts an arbitrary title/body pair; exposed directly for callers
// (e.g. the control API) that want to trigger a notification outside the
// event-sink path.
func (n *Notifier) Notify(ctx context.Context, title, body string) {
	n.send(ctx, title, body)
}

func (n *Notifier) send(ctx context.Context, title, body string) {
	if n.key == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{}
	form.Set("title", title)
	form.Set("desp", body)
	form.Set("noip", "1")

	endpoint := fmt.Sprintf(n.endpointFormat, n.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		n.log.Warn("failed to build notification request", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notification delivery failed, ignoring", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.log.Warn("notification webhook returned an error status", nil, "status", resp.StatusCode)
	}
}

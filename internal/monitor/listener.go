package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"

	"alfie/internal/infra"
)

const (
	jobEventsChannel = "job_events"

	listenMinReconnect = 2 * time.Second
	listenMaxReconnect = time.Minute
	listenPingEvery    = 90 * time.Second
)

// Notification is one decoded job_events payload pushed over LISTEN/NOTIFY.
type Notification struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// Listener fans out Postgres job_events notifications to subscribers. It is a
// latency optimization on top of the polling Monitor: notifications can be
// dropped on reconnect, so anything that needs a consistent view must still
// poll Snapshot.
type Listener struct {
	pq     *pq.Listener
	logger infra.Logger

	mu   sync.Mutex
	subs map[chan Notification]struct{}
}

func NewListener(databaseURL string, logger infra.Logger) *Listener {
	l := &Listener{
		logger: logger,
		subs:   map[chan Notification]struct{}{},
	}
	l.pq = pq.NewListener(databaseURL, listenMinReconnect, listenMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn().Err(err).Int("event", int(ev)).Msg("monitor: listener connection event")
		}
	})
	return l
}

// Subscribe registers a notification channel. The returned cancel func must be
// called when the subscriber goes away. Slow subscribers lose notifications
// rather than blocking the fan-out.
func (l *Listener) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	cancel := func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
	return ch, cancel
}

// Run listens on the job_events channel until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.pq.Listen(jobEventsChannel); err != nil {
		return err
	}
	defer l.pq.Close()

	ping := time.NewTicker(listenPingEvery)
	defer ping.Stop()

	l.logger.Info().Str("channel", jobEventsChannel).Msg("monitor: listening for job events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-l.pq.Notify:
			if n == nil {
				// nil signals a reconnect; notifications may have been
				// missed, subscribers re-sync via Snapshot.
				continue
			}
			var note Notification
			if err := json.Unmarshal([]byte(n.Extra), &note); err != nil {
				l.logger.Warn().Err(err).Str("payload", n.Extra).Msg("monitor: bad notification payload")
				continue
			}
			l.broadcast(note)
		case <-ping.C:
			if err := l.pq.Ping(); err != nil {
				l.logger.Warn().Err(err).Msg("monitor: listener ping failed")
			}
		}
	}
}

func (l *Listener) broadcast(note Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- note:
		default:
			l.logger.Debug().Str("job_id", note.JobID).Msg("monitor: subscriber backlogged, dropping notification")
		}
	}
}

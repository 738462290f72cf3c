package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Wakeup reconnect backoff. The cap prevents overflow while staying well
// under any periodic interval.
const (
	wakeupInitBackoff = 5 * time.Second
	wakeupBackoffMult = 2
	wakeupMaxBackoff  = 5 * time.Minute
)

// WakeupListener subscribes to a server-side notification socket and
// issues a sync request on every message. The message payload is ignored:
// the socket is a wakeup channel, not a data channel. The engine fetches
// actual changes itself.
type WakeupListener struct {
	url         string
	requestSync func()
	logger      *slog.Logger
}

// NewWakeupListener creates a listener for the given websocket URL.
func NewWakeupListener(url string, requestSync func(), logger *slog.Logger) *WakeupListener {
	return &WakeupListener{url: url, requestSync: requestSync, logger: logger}
}

// Run connects and listens until ctx is cancelled, reconnecting with
// capped exponential backoff after any failure.
func (l *WakeupListener) Run(ctx context.Context) error {
	backoff := wakeupInitBackoff

	for {
		started := time.Now()

		if err := l.listen(ctx); err != nil {
			l.logger.Warn("wakeup socket disconnected",
				slog.String("error", err.Error()),
				slog.Duration("reconnect_in", backoff),
			)
		}

		// A connection that held for a while resets the backoff; only
		// rapid-fire failures escalate it.
		if time.Since(started) > time.Minute {
			backoff = wakeupInitBackoff
		}

		if !sleepCtx(ctx, backoff) {
			return nil
		}

		backoff *= wakeupBackoffMult
		if backoff > wakeupMaxBackoff {
			backoff = wakeupMaxBackoff
		}
	}
}

// listen runs one connection lifetime: dial, then read messages until the
// connection drops or ctx is cancelled.
func (l *WakeupListener) listen(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	l.logger.Info("wakeup socket connected", slog.String("url", l.url))

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}

		l.logger.Debug("wakeup message received")
		l.requestSync()
	}
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/notification"
)

// Notifier publishes notifications on a Postgres NOTIFY channel so every
// instance of the service can push them to its connected dashboards.
type Notifier struct {
	db      *sql.DB
	channel string
}

func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{db: db, channel: channel}
}

// Publish sends the notification payload with pg_notify.
func (n *Notifier) Publish(ctx context.Context, notif *notification.Notification) error {
	payload, err := json.Marshal(notif.ToPayload())
	if err != nil {
		return fmt.Errorf("error encoding notification payload: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload)); err != nil {
		return fmt.Errorf("error publishing notification: %w", err)
	}
	return nil
}

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// Listener receives NOTIFY payloads on a dedicated connection.
type Listener struct {
	dsn     string
	channel string
	logger  *logrus.Entry
}

func NewListener(dsn, channel string, logger *logrus.Entry) *Listener {
	return &Listener{dsn: dsn, channel: channel, logger: logger}
}

// Run blocks until ctx is done, handing every decoded payload to handle.
func (l *Listener) Run(ctx context.Context, handle func(notification.Payload)) error {
	listener := pq.NewListener(l.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.WithError(err).WithField("event", ev).Warn("Notification listener connection event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on channel %q: %w", l.channel, err)
	}
	l.logger.WithField("channel", l.channel).Info("Listening for notifications")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; notifications sent meanwhile are lost.
			if n == nil {
				continue
			}
			var p notification.Payload
			if err := json.Unmarshal([]byte(n.Extra), &p); err != nil {
				l.logger.WithError(err).Warn("Dropping malformed notification payload")
				continue
			}
			handle(p)
		case <-time.After(listenerPingInterval):
			if err := listener.Ping(); err != nil {
				l.logger.WithError(err).Warn("Notification listener ping failed")
			}
		}
	}
}

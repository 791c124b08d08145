// Package notify formats commute summaries and delivers them to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Notification is one commute summary ready to deliver
type Notification struct {
	ID      string    `json:"id"`
	Zone    string    `json:"zone"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Sender delivers a notification over one channel
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// SendMetrics records per-channel delivery results
type SendMetrics interface {
	NotificationResult(channel string, err error)
}

// Multi sends to every configured channel. A failing channel does not stop
// the others; all failures are joined into the returned error.
type Multi struct {
	senders []Sender
	metrics SendMetrics
}

func NewMulti(m SendMetrics, senders ...Sender) *Multi {
	return &Multi{senders: senders, metrics: m}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m.senders {
		err := s.Send(ctx, n)
		if m.metrics != nil {
			m.metrics.NotificationResult(s.Name(), err)
		}
		if err != nil {
			slog.Error("notification failed", "channel", s.Name(), "id", n.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		slog.Info("notification sent", "channel", s.Name(), "id", n.ID, "zone", n.Zone)
	}
	return errors.Join(errs...)
}

// Package alert delivers operator notifications for notable events.
package alert

import (
	"context"

	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// Notifier sends a message to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NoOpNotifier discards all notifications.
type NoOpNotifier struct{}

// Notify implements Notifier.
func (NoOpNotifier) Notify(context.Context, string) error { return nil }

// LogNotifier writes notifications to the application log. The default until
// a real channel is configured.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, message string) error {
	logger.Infof("ALERT: %s", message)
	return nil
}

// SignalNotifier forwards signal closures to a Notifier. It implements
// signal.Listener.
type SignalNotifier struct {
	notifier Notifier
}

// NewSignalNotifier wraps a Notifier as a signal listener.
func NewSignalNotifier(n Notifier) *SignalNotifier {
	if n == nil {
		n = NoOpNotifier{}
	}
	return &SignalNotifier{notifier: n}
}

// OnSignalOpened implements signal.Listener. Opens are not alerted.
func (n *SignalNotifier) OnSignalOpened(*signal.MarketSignal) {}

// OnSignalClosed implements signal.Listener.
func (n *SignalNotifier) OnSignalClosed(s *signal.MarketSignal) {
	if err := n.notifier.Notify(context.Background(), s.String()); err != nil {
		logger.Warnf("Failed to deliver signal alert: %v", err)
	}
}

package notify

import (
	"context"
	"fmt"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// NotificationError reports a failed delivery. It is never fatal to a run.
type NotificationError struct {
	Subject string
	Err     error
}

// Error implements the error interface.
func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to deliver notification %q: %v", e.Subject, e.Err)
}

// Unwrap returns the sink error.
func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Notifier sends notifications through a sink and swallows delivery failures.
type Notifier struct {
	sink Sink
	lggr logger.Logger
}

// NewNotifier creates a Notifier. A nil sink logs only.
func NewNotifier(sink Sink, lggr logger.Logger) *Notifier {
	if sink == nil {
		sink = NewLogSink(lggr)
	}

	return &Notifier{sink: sink, lggr: lggr}
}

// Notify sends message under subject. A delivery failure is logged as a *NotificationError
// and the returned value only tells the caller whether delivery succeeded.
func (n *Notifier) Notify(ctx context.Context, subject, message string) bool {
	if err := n.sink.Send(ctx, subject, message); err != nil {
		nerr := &NotificationError{Subject: subject, Err: err}
		n.lggr.Warnw("Notification not delivered", "subject", subject, "error", nerr)

		return false
	}

	return true
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Delivery results reported to the recorder
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Recorder counts delivery results
type Recorder interface {
	Notification(result string)
}

// Notifier is a best-effort wrapper around a Mailer: it never returns an error
type Notifier struct {
	mailer   Mailer
	logger   *slog.Logger
	recorder Recorder
}

// NewNotifier creates a Notifier. recorder may be nil.
func NewNotifier(mailer Mailer, logger *slog.Logger, recorder Recorder) *Notifier {
	return &Notifier{mailer: mailer, logger: logger, recorder: recorder}
}

// Notify sends msg unless its recipient is empty. Failures are logged and
// swallowed. The result string is returned for the caller's logs.
func (n *Notifier) Notify(ctx context.Context, msg Message) string {
	result := n.deliver(ctx, msg)
	if n.recorder != nil {
		n.recorder.Notification(result)
	}
	return result
}

func (n *Notifier) deliver(ctx context.Context, msg Message) (result string) {
	if msg.To == "" {
		return ResultSkipped
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Mailer panicked", "to", msg.To, "panic", fmt.Sprint(r))
			result = ResultFailed
		}
	}()

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("Failed to send email", "to", msg.To, "subject", msg.Subject, "error", err.Error())
		return ResultFailed
	}

	n.logger.Info("Email sent", "to", msg.To, "subject", msg.Subject)
	return ResultSent
}

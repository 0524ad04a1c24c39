// Package notification delivers user-facing messages about rentals and
// payments over one or more channels.
package notification

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoChannel means the user cannot be reached on a channel, e.g. no
// Telegram chat is linked.
var ErrNoChannel = errors.New("no notification channel for user")

// Notifier sends one text message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Multi fans a message out to several notifiers. Channels that report
// ErrNoChannel are skipped. Multi fails if any channel fails, or if no
// channel could take the message at all.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID, message string) error {
	var (
		errs      []error
		delivered bool
	)
	for _, n := range m {
		err := n.Notify(ctx, userID, message)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrNoChannel):
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !delivered {
		return ErrNoChannel
	}
	return nil
}

// LogNotifier writes messages to the log. It is the fallback channel when no
// messaging transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, userID, message string) error {
	n.Logger.InfoContext(ctx, "notification", "user_id", userID, "message", message)
	return nil
}

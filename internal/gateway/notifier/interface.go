package notifier

import "context"

// TextNotifier is the one call every alert path needs.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Noop drops every message. Used when no channel is configured.
type Noop struct{}

func (Noop) SendText(context.Context, string) error { return nil }

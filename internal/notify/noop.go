package notify

import "context"

// NoopNotifier drops every message. Used when no gateway is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, Message) error { return nil }

var _ Notifier = NoopNotifier{}

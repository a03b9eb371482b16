// Package publisher defines the event publishing contract the console
// uses to announce domain occurrences (card redemptions, campaign
// completions, import results) to downstream systems.
package publisher

import "context"

// Publisher delivers one JSON-encoded payload to a topic and returns the
// broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Nop discards every publish. Used when no broker is configured.
type Nop struct{}

// Publish drops the payload and reports success.
func (Nop) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

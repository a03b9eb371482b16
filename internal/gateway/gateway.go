// Package gateway holds the outbound SMS and WhatsApp clients. Both speak
// fixed JSON contracts; neither retries. Callers that want retries (the
// campaign worker) build them on top, callers that do not (notification
// test sends) surface the first failure.
package gateway

import (
	"context"
	"errors"
)

// ErrRejected means the gateway refused the message (bad destination,
// unknown template, account block). Retrying will not help.
var ErrRejected = errors.New("gateway rejected message")

// ErrUnavailable means the gateway could not take the message right now
// (5xx, network failure). Retrying may help.
var ErrUnavailable = errors.New("gateway unavailable")

// Sender delivers one message and returns the gateway's message ID.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

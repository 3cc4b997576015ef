// Package publish delivers encoded sensor records to a message broker.
package publish

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotConnected is returned by Publish when the broker connection is
// not established.
var ErrNotConnected = errors.New("not connected")

// Publisher is the transport of one sensor runner. Each runner owns its
// Publisher, so implementations need not coordinate across runners.
type Publisher interface {
	// Connect establishes the broker connection. It is not retried.
	Connect(ctx context.Context) error

	// Publish delivers one payload to topic.
	Publish(topic string, payload []byte) error

	// Close releases the connection.
	Close() error
}

// Package events publishes a record of every command applied to a room.
package events

import (
	"context"

	"github.com/mcoot/turnclock/internal/model"
)

// Publisher delivers command events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event model.CommandEvent) error
	Close() error
}

// Nop discards every event
type Nop struct{}

// Ensure Nop implements Publisher
var _ Publisher = Nop{}

func (Nop) Publish(context.Context, model.CommandEvent) error { return nil }

func (Nop) Close() error { return nil }

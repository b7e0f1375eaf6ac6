package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/turnclock/internal/events"
	"github.com/mcoot/turnclock/internal/model"
)

// MockPublisher records published events for assertions
type MockPublisher struct {
	mu     sync.Mutex
	events []model.CommandEvent

	// Err, when set, is returned from Publish
	Err error
}

// Ensure MockPublisher implements Publisher
var _ events.Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates an empty MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(_ context.Context, event model.CommandEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *MockPublisher) Close() error { return nil }

// Events returns a copy of everything published so far
func (p *MockPublisher) Events() []model.CommandEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.CommandEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Commands returns the command names published so far, in order
func (p *MockPublisher) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Command
	}
	return out
}

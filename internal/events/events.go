// Package events defines the domain events emitted after committed toy
// interactions and the publishers that deliver them.
package events

import (
	"context"
	"sync"
	"time"
)

// RoutingInteractionLogged is the routing key of InteractionLogged events.
const RoutingInteractionLogged = "interaction.logged"

// InteractionLogged is emitted once per answered toy question. Downstream
// consumers (weekly summary generation) read it from the broker.
type InteractionLogged struct {
	ConversationID string    `json:"conversation_id"`
	ChildID        string    `json:"child_id"`
	ToyUUID        string    `json:"toy_uuid"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	WeekStart      time.Time `json:"week_start"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishInteraction(ctx context.Context, ev InteractionLogged) error
}

// Noop discards every event.
type Noop struct{}

// PublishInteraction implements Publisher.
func (Noop) PublishInteraction(context.Context, InteractionLogged) error { return nil }

// Memory keeps published events in memory. Used by tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []InteractionLogged
	Err    error
}

// PublishInteraction implements Publisher.
func (m *Memory) PublishInteraction(_ context.Context, ev InteractionLogged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []InteractionLogged {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InteractionLogged, len(m.events))
	copy(out, m.events)
	return out
}

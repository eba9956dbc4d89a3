package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Dispatcher routes events to subscribers by event type.
//
// Safe for concurrent use. Publishing to a closed dispatcher is a no-op.
type Dispatcher struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher backed by an in-process channel bus.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Publish delivers the event to all current subscribers of its type.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.Type, err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)

	if err := d.pubsub.Publish(ev.Type, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a channel of events of the given type. The channel
// closes when ctx is cancelled or the dispatcher is closed.
func (d *Dispatcher) Subscribe(ctx context.Context, eventType string) (<-chan Event, error) {
	messages, err := d.pubsub.Subscribe(ctx, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}

	ch := make(chan Event, 16)
	go func() {
		defer close(ch)

		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				slog.Warn("Dropping malformed event", "type", eventType, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Scope returns an emitter stamping every event with the component name.
func (d *Dispatcher) Scope(component string) *Emitter {
	return &Emitter{dispatcher: d, component: component}
}

// Close shuts the bus down and closes all subscriber channels.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	return d.pubsub.Close()
}

// Emitter publishes events on behalf of one component.
type Emitter struct {
	dispatcher *Dispatcher
	component  string
}

// Emit publishes an event of the given type. Failures are logged, not
// returned; event delivery never gates the caller's operation.
func (e *Emitter) Emit(ctx context.Context, eventType string, payload map[string]any) {
	ev := New(eventType, payload)
	ev.Component = e.component

	if err := e.dispatcher.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish event",
			"component", e.component, "type", eventType, "error", err)
	}
}

// Package event provides an in-process pub/sub dispatcher built on
// watermill's gochannel transport. Components publish lifecycle events and
// consumers subscribe by event type.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/serialize"
)

// Event types emitted by the SDK.
const (
	ToolExecuted = "tool.executed"
	ToolBlocked  = "tool.blocked"

	PipelineSeeded      = "pipeline.seeded"
	PipelineRunStarted  = "pipeline.run_started"
	PipelineRunFinished = "pipeline.run_finished"
	PipelineCleanup     = "pipeline.cleanup"

	ConfigReloaded = "config.reloaded"
)

// Event is a single occurrence with a JSON-serializable payload.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Type is the event type, e.g. "tool.executed".
	Type string `json:"type"`

	// Component names the emitter, e.g. "toolkit" or "harness".
	Component string `json:"component,omitempty"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Payload carries event-specific data.
	Payload map[string]any `json:"payload,omitempty"`
}

// New creates an Event with a fresh ID and the current time. The payload is
// normalized so values like durations and errors survive JSON marshaling.
func New(eventType string, payload map[string]any) Event {
	normalized, _ := serialize.Normalize(payload).(map[string]any)
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   normalized,
	}
}

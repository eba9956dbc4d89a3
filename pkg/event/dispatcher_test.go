package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPublishSubscribe(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := d.Subscribe(ctx, ToolExecuted)
	require.NoError(t, err)

	ev := New(ToolExecuted, map[string]any{"tool": "github_list_issues"})
	require.NoError(t, d.Publish(ctx, ev))

	select {
	case got := <-events:
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ToolExecuted, got.Type)
		assert.Equal(t, "github_list_issues", got.Payload["tool"])
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDispatcherTypeIsolation(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocked, err := d.Subscribe(ctx, ToolBlocked)
	require.NoError(t, err)

	require.NoError(t, d.Publish(ctx, New(ToolExecuted, nil)))
	require.NoError(t, d.Publish(ctx, New(ToolBlocked, map[string]any{"tool": "jira_delete_issue"})))

	select {
	case got := <-blocked:
		assert.Equal(t, ToolBlocked, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case got := <-blocked:
		t.Fatalf("unexpected extra event: %v", got.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitterStampsComponent(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := d.Subscribe(ctx, PipelineSeeded)
	require.NoError(t, err)

	d.Scope("harness").Emit(ctx, PipelineSeeded, map[string]any{"pipeline": "p-1"})

	select {
	case got := <-events:
		assert.Equal(t, "harness", got.Component)
		assert.Equal(t, "p-1", got.Payload["pipeline"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher()

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	// Publishing after close is a silent no-op.
	assert.NoError(t, d.Publish(context.Background(), New(ToolExecuted, nil)))
}

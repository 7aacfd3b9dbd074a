package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	client := newRecordingClient("client-1", 7)
	require.NoError(t, hub.Register(client))

	var publisher EventPublisher = hub
	publisher.Publish(7, ClosingGenerated(map[string]interface{}{"period": "2025-03"}))

	events := client.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "closing.generated", events[0].Type)
	assert.Equal(t, uint64(1), events[0].Seq)
}

func TestNoOpPublisher_Publish(t *testing.T) {
	var publisher EventPublisher = &NoOpPublisher{}
	assert.NotPanics(t, func() {
		publisher.Publish(1, FeePaid(nil))
	})
}

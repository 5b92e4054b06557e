package nats

import (
	"testing"
	"time"

	"inventory-assistant-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	ev, err := decode("events.transfer_completed", []byte(`{"user_id":"42","occurred_at":"2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, events.TypeTransferCompleted, ev.EventType())
	assert.Equal(t, "42", ev.Payload()["user_id"])
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp())

	_, err = decode("events.x", []byte("not json"))
	assert.Error(t, err)
}

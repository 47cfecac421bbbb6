package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEventOccurredTask(t *testing.T) {
	payload := EventOccurredPayload{
		EventID:    "1914728531133956096",
		UserID:     "1914728531133956097",
		EventLogID: "1914728531133956098",
		Metadata:   map[string]any{"source": "forum"},
	}

	task, err := NewEventOccurredTask(payload)
	require.NoError(t, err)
	require.Equal(t, TaskEventOccurred, task.Type())

	var decoded EventOccurredPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, payload, decoded)
}

func TestEventOccurredPayloadToleratesUnknownFields(t *testing.T) {
	raw := []byte(`{"event_id":"1","user_id":"2","schema_version":9}`)

	var decoded EventOccurredPayload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "1", decoded.EventID)
	require.Equal(t, "2", decoded.UserID)
	require.Empty(t, decoded.EventLogID)
}

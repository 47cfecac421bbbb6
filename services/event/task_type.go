package event

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEventOccurred = "event:occurred"

// EventOccurredPayload is the job handed from the producer side to the
// reward worker. Workers must tolerate unknown extra fields, which
// encoding/json does by default.
type EventOccurredPayload struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	EventLogID string         `json:"event_log_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewEventOccurredTask(p EventOccurredPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventOccurred, payload, opts...), nil
}

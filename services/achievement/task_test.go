package achievement

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"communityhub-engine/services/event"
)

func (f *fixture) seedEvent(t *testing.T, tag string) *event.Event {
	t.Helper()
	evt := &event.Event{
		ID:          f.node.Generate(),
		Tag:         tag,
		CommunityID: f.node.Generate(),
		CreatedByID: f.node.Generate(),
	}
	require.NoError(t, f.db.Create(evt).Error)
	return evt
}

func (f *fixture) seedEventLog(t *testing.T, eventID, userID snowflake.ID, value float64) *event.EventLog {
	t.Helper()
	log := &event.EventLog{
		ID:      f.node.Generate(),
		EventID: eventID,
		UserID:  userID,
		Value:   value,
	}
	require.NoError(t, f.db.Create(log).Error)
	return log
}

func (f *fixture) occurredTask(t *testing.T, evt *event.Event, userID snowflake.ID, log *event.EventLog) *asynq.Task {
	t.Helper()
	payload := event.EventOccurredPayload{
		EventID: evt.ID.String(),
		UserID:  userID.String(),
	}
	if log != nil {
		payload.EventLogID = log.ID.String()
	}
	task, err := event.NewEventOccurredTask(payload)
	require.NoError(t, err)
	return task
}

func (f *fixture) rewardCount(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&AchievementReward{}).
		Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestHandleEventOccurredIssuesReward(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	a := f.seedAchievement(t, func(a *Achievement) { a.EventID = evt.ID })
	w := f.seedWallet(t, userID, nil)
	log := f.seedEventLog(t, evt.ID, userID, 1)

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, log))
	require.NoError(t, err)

	require.Equal(t, int64(1), f.rewardCount(t, userID))
	require.Equal(t, a.RewardAmount, f.balance(t, w.ID))
}

func TestHandleEventOccurredDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	f.seedAchievement(t, func(a *Achievement) { a.EventID = evt.ID })
	w := f.seedWallet(t, userID, nil)
	log := f.seedEventLog(t, evt.ID, userID, 1)

	job := f.occurredTask(t, evt, userID, log)

	require.NoError(t, task.HandleEventOccurred(context.Background(), job))
	// At-least-once delivery: the retry lands on the unique occurrence key,
	// is treated as a business outcome, and the job still succeeds.
	require.NoError(t, task.HandleEventOccurred(context.Background(), job))

	require.Equal(t, int64(1), f.rewardCount(t, userID))
	require.Equal(t, int64(100), f.balance(t, w.ID))
	require.Equal(t, int64(1), f.transactionCount(t, w.ID))
}

func TestHandleEventOccurredDuplicateDeliveryWithoutLogID(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	f.seedAchievement(t, func(a *Achievement) { a.EventID = evt.ID })
	w := f.seedWallet(t, userID, nil)
	f.seedEventLog(t, evt.ID, userID, 1)

	// No occurrence id on the payload; the worker pins the issuance to the
	// latest log, so the redelivery still hits the unique occurrence key.
	job := f.occurredTask(t, evt, userID, nil)

	require.NoError(t, task.HandleEventOccurred(context.Background(), job))
	require.NoError(t, task.HandleEventOccurred(context.Background(), job))

	require.Equal(t, int64(1), f.rewardCount(t, userID))
	require.Equal(t, int64(100), f.balance(t, w.ID))
	require.Equal(t, int64(1), f.transactionCount(t, w.ID))
}

func TestHandleEventOccurredNoLogsDropped(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	f.seedAchievement(t, func(a *Achievement) { a.EventID = evt.ID })

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, nil))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, f.rewardCount(t, userID))
}

func TestHandleEventOccurredConditionNotMet(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "purchase.completed")
	f.seedAchievement(t, func(a *Achievement) {
		a.EventID = evt.ID
		a.ConditionAggregateType = AggregateSum
		a.ConditionComparisonType = CompareGreaterThanOrEqual
		a.ConditionValue = 500
	})
	log := f.seedEventLog(t, evt.ID, userID, 100)

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, log))
	require.NoError(t, err)
	require.Zero(t, f.rewardCount(t, userID))
}

func TestHandleEventOccurredSkipsInactiveWindow(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")

	expired := time.Now().Add(-time.Hour)
	f.seedAchievement(t, func(a *Achievement) {
		a.EventID = evt.ID
		a.DateTo = &expired
	})
	upcoming := time.Now().Add(time.Hour)
	f.seedAchievement(t, func(a *Achievement) {
		a.EventID = evt.ID
		a.DateFrom = &upcoming
	})
	f.seedAchievement(t, func(a *Achievement) {
		a.EventID = evt.ID
		a.Status = StatusInactive
	})
	log := f.seedEventLog(t, evt.ID, userID, 1)

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, log))
	require.NoError(t, err)
	require.Zero(t, f.rewardCount(t, userID))
}

func TestHandleEventOccurredCustomAggregateSkipped(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	f.seedAchievement(t, func(a *Achievement) {
		a.EventID = evt.ID
		a.ConditionAggregateType = AggregateCustom
	})
	log := f.seedEventLog(t, evt.ID, userID, 1)

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, log))
	require.NoError(t, err)
	require.Zero(t, f.rewardCount(t, userID))
}

func TestHandleEventOccurredUnknownEventDropped(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	payload := event.EventOccurredPayload{
		EventID: f.node.Generate().String(),
		UserID:  f.node.Generate().String(),
	}
	job, err := event.NewEventOccurredTask(payload)
	require.NoError(t, err)

	err = task.HandleEventOccurred(context.Background(), job)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEventOccurredInvalidPayloadDropped(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	job := asynq.NewTask(event.TaskEventOccurred, []byte("{not json"))
	err := task.HandleEventOccurred(context.Background(), job)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEventOccurredForeignEventLogDropped(t *testing.T) {
	f := newFixture(t)
	task := NewTask(TaskParams{DB: f.db, Service: f.svc})

	userID := f.node.Generate()
	evt := f.seedEvent(t, "post.created")
	f.seedAchievement(t, func(a *Achievement) { a.EventID = evt.ID })

	// Log row belongs to another user; the job must be dropped, not retried.
	foreign := f.seedEventLog(t, evt.ID, f.node.Generate(), 1)

	err := task.HandleEventOccurred(context.Background(), f.occurredTask(t, evt, userID, foreign))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, f.rewardCount(t, userID))
}

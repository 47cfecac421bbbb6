package achievement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"communityhub-engine/pkg/errutil"
	"communityhub-engine/services/event"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Task is the reward worker. One instance serves the whole process; asynq
// drives it concurrently from the durable queue.
type Task struct {
	db  *gorm.DB
	svc *Service
}

type TaskParams struct {
	fx.In

	DB      *gorm.DB
	Service *Service
}

func NewTask(p TaskParams) *Task {
	return &Task{
		db:  p.DB,
		svc: p.Service,
	}
}

// HandleEventOccurred processes one "user performed event X" job: loads the
// event and the user's log row, walks every achievement currently eligible
// for the event, and issues rewards for satisfied conditions. Achievements
// are evaluated independently; a failure on one never blocks the others.
func (t *Task) HandleEventOccurred(ctx context.Context, task *asynq.Task) error {
	var payload event.EventOccurredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("event_id", payload.EventID),
		zap.String("user_id", payload.UserID),
		zap.String("event_log_id", payload.EventLogID),
	)
	zapLog.Info("start reward evaluation job")

	eventID, err := snowflake.ParseString(payload.EventID)
	if err != nil {
		return fmt.Errorf("invalid event_id %q: %w", payload.EventID, asynq.SkipRetry)
	}
	userID, err := snowflake.ParseString(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user_id %q: %w", payload.UserID, asynq.SkipRetry)
	}

	var evt event.Event
	if err := t.db.WithContext(ctx).First(&evt, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The event type was deleted after the job was queued; retrying
			// cannot succeed.
			zapLog.Warn("event no longer exists, dropping job")
			return fmt.Errorf("event %s not found: %w", payload.EventID, asynq.SkipRetry)
		}
		return err
	}

	var eventLogID *snowflake.ID
	if payload.EventLogID != "" {
		id, err := snowflake.ParseString(payload.EventLogID)
		if err != nil {
			return fmt.Errorf("invalid event_log_id %q: %w", payload.EventLogID, asynq.SkipRetry)
		}

		// Scoped to the job's user so a foreign or stale log id cannot feed
		// the evaluation.
		var log event.EventLog
		if err := t.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", id, userID).
			First(&log).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				zapLog.Warn("event log not found for user, dropping job")
				return fmt.Errorf("event log %s not found for user: %w", payload.EventLogID, asynq.SkipRetry)
			}
			return err
		}
		eventLogID = &id
	} else {
		// The payload carries no occurrence id. Pin the issuance to the
		// user's latest log for this event so the unique occurrence key
		// still rejects a duplicate delivery of the same job.
		var log event.EventLog
		err := t.db.WithContext(ctx).
			Where("event_id = ? AND user_id = ?", evt.ID, userID).
			Order("created_at DESC").
			First(&log).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				zapLog.Warn("no event log exists for user, dropping job")
				return fmt.Errorf("no event log for user %s on event %s: %w", payload.UserID, payload.EventID, asynq.SkipRetry)
			}
			return err
		}
		eventLogID = &log.ID
	}

	now := time.Now()
	var candidates []Achievement
	if err := t.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", evt.ID, StatusActive).
		Find(&candidates).Error; err != nil {
		return err
	}

	var issued int
	var transient []error
	for i := range candidates {
		a := &candidates[i]
		if !a.ActiveAt(now) {
			continue
		}

		ok, err := t.evaluateAndIssue(ctx, a, userID, evt.ID, eventLogID, zapLog)
		if err != nil {
			var be errutil.BaseError
			if errors.As(err, &be) {
				// Business outcome: retrying would reproduce the same
				// violation, so log and move on.
				zapLog.Warn("achievement skipped",
					zap.String("achievement_id", a.ID.String()),
					zap.Error(err),
				)
				continue
			}
			transient = append(transient, fmt.Errorf("achievement %s: %w", a.ID, err))
			continue
		}
		if ok {
			issued++
		}
	}

	if len(transient) > 0 {
		return errors.Join(transient...)
	}

	zapLog.Info("reward evaluation job completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("issued", issued),
	)
	return nil
}

// evaluateAndIssue runs one achievement against the job. It reports whether
// a reward was issued.
func (t *Task) evaluateAndIssue(ctx context.Context, a *Achievement, userID, eventID snowflake.ID, eventLogID *snowflake.ID, zapLog *zap.Logger) (bool, error) {
	// Cheap pre-check before touching the aggregate; the issuance
	// transaction re-validates this under concurrency.
	if a.FrequencyLimit > 0 {
		var granted int64
		if err := t.db.WithContext(ctx).Model(&AchievementReward{}).
			Where("user_id = ? AND achievement_id = ?", userID, a.ID).
			Count(&granted).Error; err != nil {
			return false, err
		}
		if granted >= int64(a.FrequencyLimit) {
			zapLog.Debug("frequency limit reached, skipping",
				zap.String("achievement_id", a.ID.String()),
				zap.Int64("granted", granted),
			)
			return false, nil
		}
	}

	agg, err := LoadAggregate(ctx, t.db, a, userID, eventID)
	if err != nil {
		return false, err
	}

	satisfied, err := Evaluate(a, agg)
	if err != nil {
		zapLog.Warn("condition not evaluable",
			zap.String("achievement_id", a.ID.String()),
			zap.String("aggregate_type", string(a.ConditionAggregateType)),
			zap.Error(err),
		)
		return false, nil
	}
	if !satisfied {
		return false, nil
	}

	if _, err := t.svc.Issue(ctx, IssueParams{
		UserID:      userID,
		Achievement: a,
		EventLogID:  eventLogID,
	}); err != nil {
		return false, err
	}

	return true, nil
}

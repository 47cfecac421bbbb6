package event

import (
	"context"
	"errors"

	"communityhub-engine/pkg/config"
	"communityhub-engine/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Enqueuer is the subset of *asynq.Client the producer side needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	queue Enqueuer
	cfg   *config.Config
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Client *asynq.Client
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		queue: p.Client,
		cfg:   p.Config,
	}
}

type CreateEventParams struct {
	Tag         string
	CommunityID snowflake.ID
	CreatedByID snowflake.ID
}

func (s *Service) CreateEvent(ctx context.Context, p CreateEventParams) (*Event, error) {
	if p.Tag == "" {
		return nil, errutil.ValidationFailed("event tag is required")
	}

	evt := &Event{
		ID:          s.node.Generate(),
		Tag:         p.Tag,
		CommunityID: p.CommunityID,
		CreatedByID: p.CreatedByID,
	}

	if err := s.db.WithContext(ctx).Create(evt).Error; err != nil {
		return nil, err
	}

	return evt, nil
}

func (s *Service) GetEvent(ctx context.Context, id snowflake.ID) (*Event, error) {
	var evt Event
	if err := s.db.WithContext(ctx).First(&evt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("event not found")
		}
		return nil, err
	}
	return &evt, nil
}

type LogEventParams struct {
	EventID  snowflake.ID
	UserID   snowflake.ID
	Value    float64
	Metadata datatypes.JSON
}

// LogEvent durably records one occurrence of an event and hands a job to the
// reward worker. The caller never blocks on worker availability; only the
// enqueue itself has to succeed.
func (s *Service) LogEvent(ctx context.Context, p LogEventParams) (*EventLog, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("event_id", p.EventID.String()),
		zap.String("user_id", p.UserID.String()),
	)

	if _, err := s.GetEvent(ctx, p.EventID); err != nil {
		return nil, err
	}

	log := &EventLog{
		ID:       s.node.Generate(),
		EventID:  p.EventID,
		UserID:   p.UserID,
		Value:    p.Value,
		Metadata: p.Metadata,
	}

	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		zapLog.Error("failed to persist event log", zap.Error(err))
		return nil, err
	}

	task, err := NewEventOccurredTask(EventOccurredPayload{
		EventID:    p.EventID.String(),
		UserID:     p.UserID.String(),
		EventLogID: log.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.cfg.Worker.Queue),
		asynq.MaxRetry(s.cfg.Worker.MaxRetry),
		asynq.Timeout(s.cfg.Worker.JobTimeout),
	); err != nil {
		zapLog.Error("failed to enqueue reward evaluation job", zap.Error(err))
		return nil, errutil.ServiceUnavailable("event queue unavailable", errutil.WithErr(err))
	}

	zapLog.Info("event logged and queued for reward evaluation", zap.String("event_log_id", log.ID.String()))

	return log, nil
}

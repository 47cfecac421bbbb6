package asynq

import (
	"context"
	"time"

	"communityhub-engine/pkg/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("asynq:client",
	fx.Provide(registerClient),
)

func registerClient(lc fx.Lifecycle, redis *redis.Client) *asynq.Client {
	client := asynq.NewClientFromRedisClient(redis)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

var Server = fx.Module("asynq:server",
	fx.Provide(registerServeMux),
	fx.Provide(registerServer),
	fx.Invoke(runServer),
)

func registerServeMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func registerServer(cfg *config.Config) *asynq.Server {
	base := cfg.Worker.RetryBaseDelay

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			// Exhausted tasks land in the archive; the ErrorHandler below is
			// the operator channel for them.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return base * (1 << n)
			},
			Queues: map[string]int{
				cfg.Worker.Queue: 10,
				"default":        3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log := zap.L().With(
					zap.String("task_type", task.Type()),
					zap.Int("retried", retried),
					zap.Error(err),
				)
				if retried >= maxRetry {
					log.Error("task retries exhausted, dead-lettered")
					return
				}
				log.Warn("task failed, will retry")
			}),
		},
	)
}

func runServer(lc fx.Lifecycle, server *asynq.Server, mux *asynq.ServeMux) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Run(mux); err != nil {
					zap.L().Fatal("[Asynq] Failed to start Asynq server", zap.Error(err))
				}
			}()
			zap.L().Info("[Asynq] Asynq server started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			server.Stop()
			return nil
		},
	})
}

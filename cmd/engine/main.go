package main

import (
	"log"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	asynqlib "github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"communityhub-engine/pkg/asynq"
	"communityhub-engine/pkg/config"
	"communityhub-engine/pkg/db"
	"communityhub-engine/pkg/logger"
	"communityhub-engine/pkg/middleware"
	"communityhub-engine/pkg/redis"
	"communityhub-engine/pkg/sequence"
	"communityhub-engine/pkg/server"
	"communityhub-engine/services/achievement"
	"communityhub-engine/services/event"
	"communityhub-engine/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		asynq.Client,
		asynq.Server,
		fx.Provide(
			provideSnowflakeNode,
			provideRouter,
		),
		event.Module,
		wallet.Module,
		achievement.Module,
		server.Module,
		fx.Invoke(registerHandlers),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func provideRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Error())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func registerHandlers(mux *asynqlib.ServeMux, task *achievement.Task) {
	mux.HandleFunc(event.TaskEventOccurred, task.HandleEventOccurred)
}

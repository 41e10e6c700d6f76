// Package main runs the volunteer check-in HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/volunteer-hub/checkin/config"
	"github.com/volunteer-hub/checkin/internal/checkin"
	"github.com/volunteer-hub/checkin/internal/middleware"
	"github.com/volunteer-hub/checkin/internal/realtime"
	"github.com/volunteer-hub/checkin/pkg/database"
	"github.com/volunteer-hub/checkin/pkg/redis"
	"github.com/volunteer-hub/checkin/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis is optional: without it check-ins are not rate limited and the
	// live event stream is off.
	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	repo := checkin.NewRepository(pool)
	var (
		publisher checkin.Publisher
		events    checkin.Subscriber
	)
	if rdb != nil {
		ps := realtime.NewRedisPubSub(rdb, logger)
		publisher, events = ps, ps
	}
	svc := checkin.NewService(repo, publisher, logger)
	svc.SetTimeout(cfg.CheckIn.StoreTimeout)
	handler := checkin.NewHandler(svc, events, cfg.CheckIn.Location(), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public check-in pages
	router.GET("/positions/:id/checkin", handler.ResolveSlot)
	router.GET("/positions/:id/slots", handler.ListSlots)
	router.GET("/slots/:id/pending", handler.PendingVolunteers)
	router.POST("/slots/:id/checkin", middleware.RateLimit(cfg.RateLimit, rdb, logger), handler.CheckIn)
	router.GET("/slots/:id/events", handler.StreamEvents)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: writeTimeout(cfg.Server.WriteTimeout, events != nil),
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// writeTimeout is zero while the event stream is served, since a stream
// stays open until the client leaves.
func writeTimeout(sec int, streaming bool) time.Duration {
	if streaming {
		return 0
	}
	return time.Duration(sec) * time.Second
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

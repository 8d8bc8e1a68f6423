package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/eduline/chat-gateway/internal/chat"
	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/config"
	"github.com/eduline/chat-gateway/internal/fanout"
	"github.com/eduline/chat-gateway/internal/gateway"
	"github.com/eduline/chat-gateway/internal/hub"
	"github.com/eduline/chat-gateway/internal/notify"
	"github.com/eduline/chat-gateway/internal/presence"
	"github.com/eduline/chat-gateway/internal/registry"
	"github.com/eduline/chat-gateway/internal/router"
	"github.com/eduline/chat-gateway/internal/stream"
	pkglog "github.com/eduline/chat-gateway/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-gateway",
	})
	logger := pkglog.L()

	instanceID := uuid.New().String()
	logger.Info().Str("instance_id", instanceID).Msg("chat-gateway starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs both the presence store and the cross-instance fanout.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	pingCancel()
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// NATS carries the request/reply boundary to the chat service.
	natsConn, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer natsConn.Close()
	logger.Info().Str("url", cfg.NATS.URL).Msg("nats connected")

	chatsClient := chats.NewNATSClient(natsConn, cfg.NATS.RequestTimeout)

	// Kafka is optional: no brokers means lifecycle events are dropped.
	var producer stream.Producer = stream.Noop{}
	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err := stream.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer kafkaProducer.Close()
		producer = kafkaProducer
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka connected")
	}

	// Local connection state.
	wsHub := hub.New()
	go wsHub.Run()
	reg := registry.New()

	// Cross-instance fanout.
	fo := fanout.NewRedis(redisClient, cfg.Redis.FanoutChannel, instanceID)
	rt := router.New(wsHub, fo)
	go fo.Run(ctx, rt.HandleRemote)

	// Post and reply announcements from the classes service.
	notifier := notify.New(rt)
	subs, err := notifier.Subscribe(natsConn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to class announcements")
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	// Presence.
	store := presence.NewRedisStore(redisClient)
	tracker := presence.NewTracker(store, rt, reg, cfg.Presence)
	go tracker.RunHeartbeat(ctx)

	// Chat semantics.
	guard := chat.NewGuard(chatsClient, tracker)
	delivery := chat.NewDelivery(chatsClient, guard, rt, producer)
	typing := chat.NewTyping(rt, cfg.Typing.AutoStopDelay)
	defer typing.Shutdown()

	gw := gateway.New(reg, rt, tracker, guard, delivery, typing, producer)
	wsHandler := gateway.NewHandler(wsHub, gw, cfg.WebSocket)

	// HTTP surface.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	wsHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat-gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	<-fo.Done()

	logger.Info().Msg("chat-gateway stopped")
}

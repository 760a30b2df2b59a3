package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "equeue/docs"
	"equeue/internal/auth"
	"equeue/internal/broadcast"
	"equeue/internal/command"
	"equeue/internal/config"
	"equeue/internal/handlers"
	"equeue/internal/queue"
	"equeue/internal/session"
	"equeue/internal/storage"
	"equeue/internal/tasks"
	"equeue/internal/ws"
)

// @Title						Электронная очередь на сдачу работ
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("Ошибка получения .env: ", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Ошибка конфигурации: ", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := storage.ConnectDatabase(cfg.DB)
	if err != nil {
		log.Fatal("Ошибка подключения к базе данных: ", err)
	}
	defer storage.Close(db)

	rdb, err := storage.InitRedis(context.Background(), cfg)
	if err != nil {
		log.Fatal("Ошибка подключения к Redis: ", err)
	}
	defer rdb.Close()

	gormStore := queue.NewGormStore(db)
	registry := queue.NewRegistry(
		queue.NewCachedStore(gormStore, rdb, cfg.SnapshotCacheTTL, logger),
		queue.WithLogger(logger),
	)
	sessions := session.NewManager(cfg.SessionSendBuffer, logger)
	dispatcher := broadcast.NewDispatcher(registry, sessions, logger)
	registry.SetNotifier(dispatcher)
	processor := command.NewProcessor(registry, sessions, dispatcher, logger)

	var validator auth.Validator
	switch cfg.AuthMode {
	case config.AuthModeMoodle:
		validator = auth.NewMoodleValidator(db, cfg.MoodleSiteInfoURL, nil, logger)
	default:
		validator = auth.NewJWTValidator(cfg.JWTAccessSecret)
	}

	scheduler, err := tasks.InitScheduler(cfg.EvictionSpec, &tasks.Planner{
		Registry:    registry,
		Sessions:    sessions,
		Purger:      gormStore,
		IdleTimeout: cfg.QueueIdleTimeout,
		Logger:      logger,
	})
	if err != nil {
		log.Fatal("Ошибка запуска планировщика: ", err)
	}

	wsHandler := ws.NewHandler(processor, validator, ws.Options{
		ReadLimit:  cfg.WSReadLimit,
		PongWait:   cfg.WSPongWait,
		WriteWait:  cfg.WSWriteWait,
		PingPeriod: cfg.PingPeriod(),
	}, logger)
	queueHandler := handlers.NewQueueHandler(registry, sessions, gormStore)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", queueHandler.HealthHandler)
	r.GET("/ws/queue/:subject_id", wsHandler.QueueWebSocketHandler)

	r.GET("/api/queues/:subject_id", queueHandler.GetQueueHandler)
	apiGroup := r.Group("/api", auth.AuthMiddleware(validator))
	{
		apiGroup.PATCH("/queues/:subject_id/members/:user_id/status", auth.RequireAdmin(), queueHandler.SetMemberStatusHandler)
		apiGroup.GET("/profile/queues", queueHandler.GetUserQueuesHandler)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера...", err.Error())
		}
	}()
	logger.Info("server started", "addr", cfg.HTTPAddr, "auth_mode", cfg.AuthMode)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Shutdown не отслеживает перехваченные websocket-соединения.
	sessions.CloseAll()
}

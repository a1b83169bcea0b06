package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	"chat-backend/internal/handlers"
	"chat-backend/internal/middleware"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/receipts"
	"chat-backend/internal/repositories"
	"chat-backend/internal/router"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

const serviceName = "chat-backend"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := telemetry.InitTracing(context.Background(), serviceName, cfg.Otel.Endpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Server.Environment)

	if cfg.AMQP.URL != "" {
		amqpPublisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(amqpPublisher)
			defer amqpPublisher.Close()
		}
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	userRepo := repositories.NewUserRepo(database)

	registry := presence.NewRegistry()
	viewers := presence.NewViewers()

	messageRouter := router.New(messageRepo, groupRepo, userRepo, registry, viewers)
	reconciler := receipts.New(messageRepo, groupRepo, registry)

	authService := auth.NewService(cfg.JWT.Secret)

	chatHandler := handlers.NewChatHandler(messageRepo, userRepo, registry, audit)
	groupHandler := handlers.NewGroupHandler(groupRepo, messageRepo, userRepo, audit)
	uploadHandler := handlers.NewUploadHandler(cfg.Upload.Dir)
	wsHandler := ws.NewHandler(messageRouter, reconciler, viewers, authService)

	if cfg.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.Static("/uploads", cfg.Upload.Dir)

	engine.GET("/ws", wsHandler.Handle)

	authMiddleware := middleware.AuthMiddleware(authService)
	api := engine.Group("/api", authMiddleware)

	api.GET("/chat/:sender/:receiver", chatHandler.GetConversation)
	api.POST("/chat/send", chatHandler.SendMessage)
	api.GET("/online-users", chatHandler.OnlineUsers)

	api.POST("/groups", groupHandler.CreateGroup)
	api.GET("/groups", groupHandler.ListGroups)
	api.GET("/groups/:group_id/messages", groupHandler.GetGroupMessages)
	api.PATCH("/groups/:group_id", groupHandler.UpdateGroup)
	api.POST("/groups/:group_id/members", groupHandler.AddMembers)
	api.DELETE("/groups/:group_id/members", groupHandler.RemoveMembers)
	api.DELETE("/groups/:group_id", groupHandler.DeleteGroup)

	api.POST("/upload", uploadHandler.Upload)

	handlers.RegisterDebugRoutes(engine, audit, cfg.Debug)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	log.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

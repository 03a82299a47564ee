package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"aidesk/internal/ai"
	appsvc "aidesk/internal/app"
	"aidesk/internal/bootstrap"
	"aidesk/internal/cache"
	"aidesk/internal/lock"
	"aidesk/internal/platform/rabbitmq"
	"aidesk/internal/repository"
	"aidesk/internal/transport/http/handler"
	"aidesk/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.Static("/uploads", app.Config.Uploads.Dir)

	userRepo := repository.NewUserRepository(app.MySQL)
	chatRepo := repository.NewChatRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	chatFileRepo := repository.NewChatFileRepository(app.MySQL)
	knowledgeRepo := repository.NewKnowledgeRepository(app.MySQL)
	contextRepo := repository.NewContextRepository(app.MySQL)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	chatLock := lock.NewChatLock(app.Redis, time.Duration(app.Config.Redis.ChatLockTTLSeconds)*time.Second)
	promptLogPublisher := rabbitmq.NewPromptLogPublisher(app.MQConn, app.Config.RabbitMQ.PromptLogQueue)

	fileService, err := appsvc.NewFileService(app.Config.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("init file service failed: %w", err)
	}

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		chatRepo,
		messageRepo,
		chatFileRepo,
		knowledgeRepo,
		contextRepo,
		ai.NewAnthropicClient(),
		promptLogPublisher,
		historyCache,
		chatLock,
		ai.ChatConfig{
			BaseURL:     app.Config.LLM.BaseURL,
			APIKey:      app.Config.LLM.APIKey,
			Model:       app.Config.LLM.Model,
			MaxTokens:   app.Config.LLM.MaxTokens,
			Temperature: app.Config.LLM.Temperature,
		},
		appsvc.TurnOptions{
			MaxAttempts:    app.Config.LLM.MaxAttempts,
			RetryBaseDelay: time.Duration(app.Config.LLM.RetryBaseDelay) * time.Second,
		},
	)
	knowledgeService := appsvc.NewKnowledgeService(knowledgeRepo)
	contextService := appsvc.NewContextService(contextRepo)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, fileService)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeService, fileService)
	contextHandler := handler.NewContextHandler(contextService, fileService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chats")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.GET("/:id/messages", chatHandler.GetHistory)
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)
	chatGroup.POST("/stream", chatHandler.StreamMessage)

	knowledgeGroup := v1.Group("/knowledge")
	knowledgeGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	knowledgeGroup.GET("", knowledgeHandler.List)
	knowledgeGroup.GET("/:id", knowledgeHandler.Get)
	knowledgeGroup.POST("", knowledgeHandler.Add)
	knowledgeGroup.PUT("/:id", knowledgeHandler.Update)
	knowledgeGroup.DELETE("/:id", knowledgeHandler.Delete)

	contextGroup := v1.Group("/contexts")
	contextGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	contextGroup.POST("", contextHandler.Add)
	contextGroup.GET("", contextHandler.ListAll)
	contextGroup.GET("/latest", contextHandler.Latest)
	contextGroup.DELETE("/:id", contextHandler.Delete)

	return router, nil
}

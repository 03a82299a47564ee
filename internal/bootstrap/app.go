package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"aidesk/internal/config"
	"aidesk/internal/model"
	mysqlClient "aidesk/internal/platform/mysql"
	rabbitmqClient "aidesk/internal/platform/rabbitmq"
	redisClient "aidesk/internal/platform/redis"
	"aidesk/internal/repository"
	"aidesk/internal/worker"
)

type App struct {
	Config          *config.Config
	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	PromptLogWorker *worker.PromptLogWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.ChatFile{},
		&model.KnowledgeItem{},
		&model.Context{},
		&model.PromptLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	promptLogRepo := repository.NewPromptLogRepository(mysqlDB)
	promptLogWorker := worker.NewPromptLogWorker(mqConn, promptLogRepo, cfg.RabbitMQ.PromptLogQueue)
	if err := promptLogWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start prompt log worker failed: %w", err)
	}

	return &App{
		Config:          cfg,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		PromptLogWorker: promptLogWorker,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.PromptLogWorker != nil {
		a.PromptLogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

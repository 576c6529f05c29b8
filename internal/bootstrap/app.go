package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"doccopilot/internal/app"
	"doccopilot/internal/config"
	"doccopilot/internal/embed"
	"doccopilot/internal/llm"
	"doccopilot/internal/model"
	mysqlClient "doccopilot/internal/platform/mysql"
	rabbitmqClient "doccopilot/internal/platform/rabbitmq"
	redisClient "doccopilot/internal/platform/redis"
	"doccopilot/internal/rag"
	"doccopilot/internal/repository"
	"doccopilot/internal/session"
	"doccopilot/internal/worker"
)

type App struct {
	Config        *config.Config
	MySQL         *gorm.DB
	Redis         *redis.Client // nil unless the redis session backend is configured
	MQConn        *amqp.Connection
	ChatLogWorker *worker.ChatLogPersistWorker
	Copilot       *app.CopilotService

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
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.ChatLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	mqConn, err := rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	chatLogRepo := repository.NewChatLogRepository(mysqlDB)
	chatLogWorker := worker.NewChatLogPersistWorker(mqConn, chatLogRepo, cfg.RabbitMQ.ChatLogPersistQueue)
	if err := chatLogWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start chat log worker failed: %w", err)
	}

	var redisCli *redis.Client
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		redisCli, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store = session.NewRedisStore(redisCli, time.Duration(cfg.Session.TTLSeconds)*time.Second)
	default:
		store = session.NewMemoryStore()
	}

	provider := newProvider(cfg.Embedding)

	chunker, err := rag.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("configure chunker failed: %w", err)
	}
	retriever := rag.NewRetriever(provider, cfg.Retrieval.TopK)
	evaluator := rag.NewEvaluator(provider, retriever)

	generator := llm.NewClient(llm.Options{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	copilot := app.NewCopilotService(app.Options{
		Store:            store,
		Provider:         provider,
		Chunker:          chunker,
		Retriever:        retriever,
		Evaluator:        evaluator,
		Generator:        generator,
		Documents:        repository.NewDocumentRepository(mysqlDB),
		ChatLogs:         rabbitmqClient.NewChatLogPublisher(mqConn, cfg.RabbitMQ.ChatLogPersistQueue),
		MaxDocumentWords: cfg.Retrieval.MaxDocumentWords,
		QuestionCount:    cfg.Eval.QuestionCount,
		SnippetMaxChars:  cfg.Retrieval.SnippetMaxChars,
	})

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		ChatLogWorker: chatLogWorker,
		Copilot:       copilot,
		StartedAt:     time.Now(),
	}, nil
}

func newProvider(cfg config.EmbeddingConfig) embed.Provider {
	if cfg.Backend == "onnx" {
		return embed.NewONNX(embed.ONNXOptions{
			ModelPath:     cfg.ModelPath,
			VocabPath:     cfg.VocabPath,
			Dimension:     cfg.Dimension,
			MaxSeqLen:     cfg.MaxSeqLen,
			SharedLibPath: cfg.ONNXSharedLibPath,
		})
	}
	return embed.NewRemote(embed.RemoteOptions{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
	})
}

func (a *App) Close() error {
	var closeErr error
	if a.ChatLogWorker != nil {
		a.ChatLogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
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

// Package wire 负责应用依赖装配
package wire

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/pascalkienast/H5P-AI-Generator/internal/application/generation"
	"github.com/pascalkienast/H5P-AI-Generator/internal/application/library"
	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/infrastructure/h5p"
	"github.com/pascalkienast/H5P-AI-Generator/internal/infrastructure/llm"
	"github.com/pascalkienast/H5P-AI-Generator/internal/infrastructure/persistence/postgres"
	"github.com/pascalkienast/H5P-AI-Generator/internal/infrastructure/persistence/redis"
	"github.com/pascalkienast/H5P-AI-Generator/internal/interfaces/http/handler"
	"github.com/pascalkienast/H5P-AI-Generator/internal/interfaces/http/router"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
	wfprompt "github.com/pascalkienast/H5P-AI-Generator/internal/workflow/prompt"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
)

// App 装配完成的应用
type App struct {
	router      *router.Router
	pgClient    *postgres.Client
	redisClient *redis.Client
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// InitializeApp 按层装配应用依赖，返回应用与资源清理函数
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	// 数据层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	if err := pgClient.DB().WithContext(ctx).AutoMigrate(
		&entity.ConversationSession{},
		&entity.ConversationTurn{},
	); err != nil {
		_ = pgClient.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	txManager := postgres.NewTxManager(pgClient)
	sessionRepo := postgres.NewConversationSessionRepository(pgClient)
	turnRepo := postgres.NewConversationTurnRepository(pgClient)
	cache := redis.NewCache(redisClient)

	// 基础设施
	modelFactory := llm.NewFactory(cfg)
	h5pClient := h5p.NewClient(&cfg.H5P)

	// 应用层
	registry := schema.NewRegistry()
	composer := wfprompt.NewComposer(registry)
	catalog := library.NewService(h5pClient, cache, cfg.H5P.CatalogCacheTTL)
	orchestrator := generation.NewOrchestrator(
		sessionRepo, turnRepo, txManager,
		modelFactory, h5pClient, catalog,
		composer, registry, &cfg.Generation,
	)

	// 接口层
	handlers := &router.Handlers{
		Health:       handler.NewHealthHandler(pgClient, redisClient),
		Conversation: handler.NewConversationHandler(orchestrator),
		Library:      handler.NewLibraryHandler(catalog, registry),
	}
	r := router.New(cfg, handlers)

	app := &App{
		router:      r,
		pgClient:    pgClient,
		redisClient: redisClient,
	}

	cleanup := func() {
		if err := app.redisClient.Close(); err != nil {
			logger.Warn(ctx, "关闭 Redis 连接失败", "error", err.Error())
		}
		if err := app.pgClient.Close(); err != nil {
			logger.Warn(ctx, "关闭数据库连接失败", "error", err.Error())
		}
	}
	return app, cleanup, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tendero/internal/ai"
	"tendero/internal/config"
	"tendero/internal/dialogue"
	"tendero/internal/handler"
	"tendero/internal/memory"
	"tendero/internal/pkg/cache"
	"tendero/internal/pkg/mongodb"
	"tendero/internal/pkg/session"
	"tendero/internal/repository"
	"tendero/internal/retrieval"
	"tendero/internal/server/middleware"
	"tendero/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例并完成全部装配
// MongoDB 是台账的唯一事实来源，连不上直接失败；
// Redis 可选，缺席时购买会话状态退化为进程内存储
func New(cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	ctx := context.Background()

	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, dialogue state falls back to in-process store")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	aiClient, err := ai.NewClient(ctx, &cfg.AI, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}
	log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("AI client initialized")

	db := mongoClient.Database()
	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	knowledgeRepo := repository.NewKnowledgeRepo(db)
	productRepo := repository.NewProductRepo(db)

	index := retrieval.NewIndex(aiClient)

	ledgerSvc := service.NewLedgerService(conversationRepo, messageRepo,
		cfg.Assistant.PromotionThreshold, cfg.Assistant.PreviewLength)

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, index)
	if err := knowledgeSvc.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to warm retrieval index, tenants start cold")
	}

	matcher, err := dialogue.NewMatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize product matcher: %w", err)
	}

	var dialogueStore dialogue.Store
	if redisCache != nil {
		dialogueStore = dialogue.NewRedisStore(redisCache, cfg.Assistant.DialogueTTL)
	} else {
		dialogueStore = dialogue.NewMemoryStore(cfg.Assistant.DialogueTTL)
	}

	purchaseEngine := dialogue.NewEngine(dialogueStore, productRepo, matcher, aiClient, ledgerSvc, cfg.Assistant.IntentConfidence)

	assembler := memory.NewAssembler(messageRepo, cfg.Assistant.MemoryWindow, cfg.Assistant.IncludeAdminTurns)

	chatSvc := service.NewChatService(aiClient, ledgerSvc, assembler, index, purchaseEngine, productRepo, &cfg.Assistant)

	sessionSecret := cfg.Session.Secret
	if sessionSecret == "" {
		sessionSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("session secret not configured, using default (NOT SECURE for production)")
	}
	sessionExpiry := cfg.Session.Expiry
	if sessionExpiry == 0 {
		sessionExpiry = 24 * time.Hour
	}
	issuer := session.NewIssuer(sessionSecret, sessionExpiry)

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	srv.setupRoutes(chatSvc, ledgerSvc, knowledgeSvc, issuer)

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(chatSvc *service.ChatService, ledgerSvc *service.LedgerService, knowledgeSvc *service.KnowledgeService, issuer *session.Issuer) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	chatHandler := handler.NewChatHandler(chatSvc, issuer)
	conversationHandler := handler.NewConversationHandler(ledgerSvc)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeSvc)
	sessionHandler := handler.NewSessionHandler(issuer)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 挂件侧（终端用户）
		v1.POST("/chat/message", chatHandler.Chat)
		v1.POST("/sessions", sessionHandler.Create)

		// 运营侧（商家后台）
		v1.POST("/knowledge/documents", knowledgeHandler.IndexDocument)
		v1.POST("/knowledge/reindex", knowledgeHandler.Reindex)

		v1.GET("/conversations", conversationHandler.List)
		v1.GET("/conversations/:id", conversationHandler.Get)
		v1.PATCH("/conversations/:id", conversationHandler.Update)
		v1.GET("/conversations/:id/messages", conversationHandler.Messages)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

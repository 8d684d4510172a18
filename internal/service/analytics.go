package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"vitalwatch/internal/analyzer"
	"vitalwatch/internal/config"
	"vitalwatch/internal/consumer"
	"vitalwatch/internal/httpapi"
	"vitalwatch/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalwatch/internal/common/database"
	mqttcommon "vitalwatch/internal/common/mqtt"
	rediscommon "vitalwatch/internal/common/redis"
)

// AnalyticsService 生命体征分析服务（整合各层）
type AnalyticsService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	readingRepo    *repository.VitalReadingsRepository
	alertRepo      *repository.AlertEventsRepository
	analyzer       *analyzer.Analyzer
	cacheManager   *consumer.CacheManager
	sessions       *consumer.SessionRegistry
	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer
	httpServer     *http.Server
}

// NewAnalyticsService 创建分析服务
func NewAnalyticsService(cfg *config.Config, logger *zap.Logger) (*AnalyticsService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	// 4. Repository 层
	readingRepo := repository.NewVitalReadingsRepository(db, logger)
	alertRepo := repository.NewAlertEventsRepository(db, logger)

	// 5. 评估与缓存
	vitalAnalyzer := analyzer.NewAnalyzer(
		readingRepo,
		alertRepo,
		logger,
		cfg.Analytics.TrendWindow,
		cfg.Analytics.DedupWindowMinutes,
	)
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	sessions := consumer.NewSessionRegistry()

	// 6. Consumer 层
	streamConsumer := consumer.NewStreamConsumer(
		cfg,
		redisClient,
		readingRepo,
		vitalAnalyzer,
		cacheManager,
		sessions,
		logger,
	)
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, logger)

	// 7. HTTP API
	handler := httpapi.NewAnalyticsHandler(
		readingRepo,
		alertRepo,
		cacheManager,
		sessions,
		logger,
		cfg.Analytics.TrendWindow,
	)
	router := httpapi.NewRouter(logger)
	router.RegisterAnalyticsRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return &AnalyticsService{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		mqttClient:     mqttClient,
		logger:         logger,
		readingRepo:    readingRepo,
		alertRepo:      alertRepo,
		analyzer:       vitalAnalyzer,
		cacheManager:   cacheManager,
		sessions:       sessions,
		streamConsumer: streamConsumer,
		mqttConsumer:   mqttConsumer,
		httpServer:     httpServer,
	}, nil
}

// Start 启动服务（阻塞直到上下文取消或某个组件出错）
func (s *AnalyticsService) Start(ctx context.Context) error {
	s.logger.Info("Starting analytics service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("stream", s.config.Analytics.Stream),
		zap.String("topic", s.config.Analytics.Topic),
	)

	errChan := make(chan error, 3)

	// MQTT 接入
	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("mqtt consumer: %w", err)
		}
	}()

	// Streams 消费
	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("stream consumer: %w", err)
		}
	}()

	// HTTP API
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 会话清理
	go s.pruneSessionsLoop(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// pruneSessionsLoop 定期清理空闲会话
func (s *AnalyticsService) pruneSessionsLoop(ctx context.Context) {
	idle := time.Duration(s.config.Analytics.SessionIdleMinutes) * time.Minute
	if idle <= 0 {
		idle = 30 * time.Minute
	}

	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Prune(idle); removed > 0 {
				s.logger.Info("Pruned idle patient sessions",
					zap.Int("removed", removed),
					zap.Int("remaining", s.sessions.Count()),
				)
			}
		}
	}
}

// Stop 停止服务
func (s *AnalyticsService) Stop() error {
	s.logger.Info("Stopping analytics service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := s.mqttConsumer.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop MQTT consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}

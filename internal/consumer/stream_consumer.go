package consumer

import (
	"context"
	"fmt"
	"time"

	"vitalwatch/internal/analyzer"
	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
	"vitalwatch/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "vitalwatch/internal/common/redis"
)

// StreamConsumer Redis Streams 消费者（原始读数 → 入库 → 评估）
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	readingRepo *repository.VitalReadingsRepository
	analyzer    *analyzer.Analyzer
	cache       *CacheManager
	sessions    *SessionRegistry
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	readingRepo *repository.VitalReadingsRepository,
	analyzer *analyzer.Analyzer,
	cache *CacheManager,
	sessions *SessionRegistry,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		readingRepo: readingRepo,
		analyzer:    analyzer,
		cache:       cache,
		sessions:    sessions,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Analytics.Stream
	group := c.config.Analytics.ConsumerGroup

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Analytics.ConsumerName),
	)

	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 读取一批消息并处理
func (c *StreamConsumer) consumeStream(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Analytics.Stream,
		c.config.Analytics.ConsumerGroup,
		c.config.Analytics.ConsumerName,
		int64(c.config.Analytics.BatchSize),
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}

		// 无论处理是否成功都确认，避免毒消息反复投递
		if err := rediscommon.AckMessage(ctx, c.redisClient, c.config.Analytics.Stream, c.config.Analytics.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条读数消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	// 1. 解析读数
	reading, err := models.ParseReadingMessage(msg.Values)
	if err != nil {
		return fmt.Errorf("failed to parse reading message: %w", err)
	}

	// 2. 写入 PostgreSQL
	id, err := c.readingRepo.Insert(ctx, reading)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	reading.ID = id

	// 3. 评估（分级 + 趋势 + 告警）
	assessment, alerts, err := c.analyzer.Analyze(ctx, reading)
	if err != nil {
		return fmt.Errorf("failed to analyze reading: %w", err)
	}

	// 4. 更新评估缓存
	if err := c.cache.SetAssessment(ctx, assessment); err != nil {
		c.logger.Warn("Failed to update assessment cache",
			zap.String("patient_id", reading.PatientID),
			zap.Error(err),
		)
	}

	// 5. 更新会话注册表
	session := c.sessions.Touch(reading.TenantID, reading.PatientID, assessment)

	c.logger.Info("Processed vital reading",
		zap.String("patient_id", reading.PatientID),
		zap.Int64("reading_id", id),
		zap.String("overall_risk", string(assessment.OverallRisk)),
		zap.Int("alerts", len(alerts)),
		zap.Int64("session_readings", session.ReadingCount),
	)

	return nil
}

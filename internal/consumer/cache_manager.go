package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器（患者最新评估结果）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// assessmentKey 构建评估缓存键，如 "vitalwatch:patient:<id>:assessment"
func (c *CacheManager) assessmentKey(patientID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Analytics.Cache.AssessmentKeyPrefix,
		patientID,
		c.config.Analytics.Cache.AssessmentSuffix,
	)
}

// SetAssessment 写入患者最新评估结果（带 TTL）
func (c *CacheManager) SetAssessment(ctx context.Context, assessment *models.Assessment) error {
	key := c.assessmentKey(assessment.PatientID)

	jsonData, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Analytics.Cache.AssessmentTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set assessment cache: %w", err)
	}

	c.logger.Debug("Updated assessment cache",
		zap.String("patient_id", assessment.PatientID),
		zap.String("key", key),
		zap.String("overall_risk", string(assessment.OverallRisk)),
	)

	return nil
}

// GetAssessment 读取患者最新评估结果，缓存未命中时返回 (nil, nil)
func (c *CacheManager) GetAssessment(ctx context.Context, patientID string) (*models.Assessment, error) {
	key := c.assessmentKey(patientID)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assessment cache: %w", err)
	}

	var assessment models.Assessment
	if err := json.Unmarshal([]byte(val), &assessment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
	}

	return &assessment, nil
}

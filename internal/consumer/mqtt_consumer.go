package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	mqttcommon "vitalwatch/internal/common/mqtt"
	rediscommon "vitalwatch/internal/common/redis"
)

// MQTTConsumer MQTT 消息消费者（监护设备读数接入）
//
// 设备按 "vitals/<device_id>/readings" 主题上报 JSON 读数，
// 消费者解析后发布到原始读数 Stream，由 StreamConsumer 处理。
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.Analytics.Topic
	if topic == "" {
		return fmt.Errorf("vitals MQTT topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
		zap.String("stream", c.config.Analytics.Stream),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	topic := c.config.Analytics.Topic
	if topic != "" {
		if err := c.mqttClient.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理 MQTT 消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var reading models.VitalReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	// 设备 ID 缺失时从主题中提取（vitals/<device_id>/readings）
	if reading.DeviceID == "" {
		reading.DeviceID = deviceIDFromTopic(topic)
	}

	if reading.PatientID == "" || reading.TenantID == "" {
		return fmt.Errorf("reading missing patient_id or tenant_id, topic=%s", topic)
	}

	streamID, err := rediscommon.PublishJSONToStream(context.Background(), c.redisClient, c.config.Analytics.Stream, &reading)
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Info("Published vital reading to Redis Streams",
		zap.String("device_id", reading.DeviceID),
		zap.String("patient_id", reading.PatientID),
		zap.String("stream", c.config.Analytics.Stream),
		zap.String("stream_id", streamID),
	)

	return nil
}

// deviceIDFromTopic 从主题 "vitals/<device_id>/readings" 提取设备 ID
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

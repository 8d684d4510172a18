package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"vitalwatch/internal/common/config"
)

// Config 生命体征分析服务配置
type Config struct {
	ServiceName string `yaml:"service_name"`

	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// 分析服务特定配置
	Analytics struct {
		// 设备读数接入
		Topic         string `yaml:"topic"`          // MQTT 主题，如 "vitals/+/readings"
		Stream        string `yaml:"stream"`         // 原始读数 Stream
		ConsumerGroup string `yaml:"consumer_group"` // Streams 消费者组
		ConsumerName  string `yaml:"consumer_name"`  // Streams 消费者名
		BatchSize     int    `yaml:"batch_size"`     // 每次读取的消息数

		// 评估配置
		TrendWindow        int `yaml:"trend_window"`         // 趋势估计使用的历史读数条数
		DedupWindowMinutes int `yaml:"dedup_window_minutes"` // 告警去重窗口（分钟）

		// Redis 缓存配置
		Cache struct {
			AssessmentKeyPrefix string `yaml:"assessment_key_prefix"` // 如 "vitalwatch:patient:"
			AssessmentSuffix    string `yaml:"assessment_suffix"`     // 如 ":assessment"
			AssessmentTTL       int    `yaml:"assessment_ttl"`        // 评估缓存 TTL（秒）
		} `yaml:"cache"`

		// 会话注册表配置
		SessionIdleMinutes int `yaml:"session_idle_minutes"` // 超过该时长无读数的会话被清理
	} `yaml:"analytics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置：先取环境变量（带默认值），再用可选的 YAML 文件覆盖
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServiceName = getEnv("SERVICE_NAME", "vitalwatch-analytics")

	// 数据库
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitalwatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	// Redis
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// MQTT
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vitalwatch-analytics")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// HTTP API
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8085")

	// 分析服务
	cfg.Analytics.Topic = getEnv("VITALS_TOPIC", "vitals/+/readings")
	cfg.Analytics.Stream = getEnv("VITALS_STREAM", "vitals:readings:raw")
	cfg.Analytics.ConsumerGroup = getEnv("VITALS_CONSUMER_GROUP", "vitalwatch-analytics")
	cfg.Analytics.ConsumerName = getEnv("VITALS_CONSUMER_NAME", "analytics-1")
	cfg.Analytics.BatchSize = getEnvInt("VITALS_BATCH_SIZE", 10)
	cfg.Analytics.TrendWindow = getEnvInt("TREND_WINDOW", 20)
	cfg.Analytics.DedupWindowMinutes = getEnvInt("ALERT_DEDUP_MINUTES", 5)
	cfg.Analytics.Cache.AssessmentKeyPrefix = getEnv("CACHE_ASSESSMENT_PREFIX", "vitalwatch:patient:")
	cfg.Analytics.Cache.AssessmentSuffix = ":assessment"
	cfg.Analytics.Cache.AssessmentTTL = getEnvInt("CACHE_ASSESSMENT_TTL", 300)
	cfg.Analytics.SessionIdleMinutes = getEnvInt("SESSION_IDLE_MINUTES", 30)

	// 日志
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 可选的 YAML 配置文件覆盖
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile 用 YAML 文件中出现的字段覆盖当前配置
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

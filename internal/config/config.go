package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/monitor-common/config"
)

const (
	DefaultProductionNames = "HD200,production,count,产量,今日产量"
	DefaultPlanNames       = "信捷 XD/XL/XG系列（Modbus RTU）-生产计划数"
)

// Config 工厂监控大屏服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	DBEnabled bool
	Database  config.DatabaseConfig

	RedisEnabled bool
	Redis        config.RedisConfig

	MQTTEnabled bool
	MQTT        config.MQTTConfig

	// 信捷云平台
	Xinje struct {
		BaseURL         string
		Username        string
		Password        string
		Timeout         time.Duration // 单次请求超时
		TokenTTL        time.Duration // 登录 token 有效期
		ProductionNames []string      // 产量数据点名称
		PlanNames       []string      // 计划数数据点名称
	}

	Monitor struct {
		PollingInterval time.Duration // 推送周期
		PersistInterval time.Duration // 入库周期
		DailySchedule   string        // cron 表达式（含秒）
		MonthlySchedule string

		AlarmWindow    time.Duration // 同一设备两次报警的最小间隔
		AlarmRetention time.Duration // 抑制表条目保留时间

		OEEPerformanceRate float64
		OEEQualityRate     float64
		OEENoDeviceValue   float64
		DefaultQualityRate float64

		TrendDays            int
		TrendPlaceholderPlan int

		SubscriberSendBuffer int
	}

	Mirror struct {
		Key string
		TTL time.Duration
	}

	AlarmStream struct {
		Name   string
		MaxLen int64
	}

	MQTTTopicPrefix string

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnvBool("DB_ENABLED", true)
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "factory_monitor"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "factory-monitor"
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTTTopicPrefix = strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "factory/monitor"), "/")

	cfg.Xinje.BaseURL = strings.TrimSuffix(getEnv("XINJE_BASE_URL", "http://cloud.xinje.com"), "/")
	cfg.Xinje.Username = getEnv("XINJE_USERNAME", "")
	cfg.Xinje.Password = getEnv("XINJE_PASSWORD", "")
	cfg.Xinje.Timeout = getEnvDuration("XINJE_TIMEOUT", 10*time.Second)
	cfg.Xinje.TokenTTL = getEnvDuration("XINJE_TOKEN_TTL", 6*24*time.Hour)
	cfg.Xinje.ProductionNames = getEnvList("XINJE_PRODUCTION_NAMES", DefaultProductionNames)
	cfg.Xinje.PlanNames = getEnvList("XINJE_PLAN_NAMES", DefaultPlanNames)

	cfg.Monitor.PollingInterval = getEnvDuration("POLLING_INTERVAL", 3*time.Second)
	cfg.Monitor.PersistInterval = getEnvDuration("PERSIST_INTERVAL", 60*time.Second)
	cfg.Monitor.DailySchedule = getEnv("DAILY_SCHEDULE", "0 0 1 * * *")
	cfg.Monitor.MonthlySchedule = getEnv("MONTHLY_SCHEDULE", "0 0 2 1 * *")
	cfg.Monitor.AlarmWindow = getEnvDuration("ALARM_SUPPRESSION_WINDOW", 30*time.Minute)
	cfg.Monitor.AlarmRetention = getEnvDuration("ALARM_RETENTION", time.Hour)
	cfg.Monitor.OEEPerformanceRate = getEnvFloat("OEE_PERFORMANCE_RATE", 0.95)
	cfg.Monitor.OEEQualityRate = getEnvFloat("OEE_QUALITY_RATE", 0.98)
	cfg.Monitor.OEENoDeviceValue = getEnvFloat("OEE_NO_DEVICE_VALUE", 85.0)
	cfg.Monitor.DefaultQualityRate = getEnvFloat("DEFAULT_QUALITY_RATE", 98.5)
	cfg.Monitor.TrendDays = getEnvInt("TREND_DAYS", 7)
	cfg.Monitor.TrendPlaceholderPlan = getEnvInt("TREND_PLACEHOLDER_PLAN", 1000)
	cfg.Monitor.SubscriberSendBuffer = getEnvInt("SUBSCRIBER_SEND_BUFFER", 16)

	cfg.Mirror.Key = getEnv("SNAPSHOT_MIRROR_KEY", "factory-monitor:snapshot:current")
	cfg.Mirror.TTL = getEnvDuration("SNAPSHOT_MIRROR_TTL", 30*time.Second)

	cfg.AlarmStream.Name = getEnv("ALARM_STREAM", "factory-monitor:alarms")
	cfg.AlarmStream.MaxLen = int64(getEnvInt("ALARM_STREAM_MAXLEN", 10000))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

// getEnvDuration 支持 "3s"/"30m" 形式，纯数字按秒处理
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvList 逗号分隔，去掉空白项
func getEnvList(key, defaultValue string) []string {
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

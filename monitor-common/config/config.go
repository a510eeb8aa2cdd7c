package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取 lib/pq 连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量覆盖数据库配置，如 prefix=DB 读取 DB_HOST
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if v := os.Getenv(prefix + "_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv(prefix + "_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(prefix + "_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv(prefix + "_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv(prefix + "_SSLMODE"); v != "" {
		c.SSLMode = v
	}
	if v := os.Getenv(prefix + "_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConns = n
		}
	}
	if v := os.Getenv(prefix + "_MAX_IDLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIdle = n
		}
	}
}

// LoadFromEnv 从环境变量覆盖Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if v := os.Getenv(prefix + "_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv(prefix + "_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.DB = db
		}
	}
}

// LoadFromEnv 从环境变量覆盖MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if v := os.Getenv(prefix + "_BROKER"); v != "" {
		c.Broker = v
	}
	if v := os.Getenv(prefix + "_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(prefix + "_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv(prefix + "_QOS"); v != "" {
		if qos, err := strconv.Atoi(v); err == nil && qos >= 0 && qos <= 2 {
			c.QoS = byte(qos)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Comment    CommentConfig    `mapstructure:"comment"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | postgres | sqlite
	DSN          string `mapstructure:"dsn"`    // 非空时直接使用，忽略下面的连接参数
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// BroadcastConfig 决定事件只在本实例广播，还是经 Redis 转发给所有实例
type BroadcastConfig struct {
	Mode    string `mapstructure:"mode"` // local | redis
	Channel string `mapstructure:"channel"`
}

type WebSocketConfig struct {
	SendBuffer       int           `mapstructure:"send_buffer"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PongTimeout      time.Duration `mapstructure:"pong_timeout"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ReadLimit        int64         `mapstructure:"read_limit"`
}

type CommentConfig struct {
	MaxNicknameLength int  `mapstructure:"max_nickname_length"`
	MaxTextLength     int  `mapstructure:"max_text_length"`
	Sanitize          bool `mapstructure:"sanitize"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CleanupConfig 定期清理父评论已被删除的孤儿回复
type CleanupConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

var defaults = map[string]interface{}{
	"server.host":                 "0.0.0.0",
	"server.port":                 8080,
	"server.mode":                 "debug",
	"database.driver":             "mysql",
	"database.host":               "127.0.0.1",
	"database.port":               3306,
	"database.database":           "comments",
	"database.max_idle_conns":     10,
	"database.max_open_conns":     50,
	"redis.host":                  "127.0.0.1",
	"redis.port":                  6379,
	"redis.pool_size":             10,
	"broadcast.mode":              "local",
	"broadcast.channel":           "comment_events",
	"websocket.send_buffer":       64,
	"websocket.write_timeout":     10 * time.Second,
	"websocket.pong_timeout":      60 * time.Second,
	"websocket.ping_period":       54 * time.Second,
	"websocket.operation_timeout": 10 * time.Second,
	"websocket.read_limit":        16 * 1024,
	"comment.max_nickname_length": 50,
	"comment.max_text_length":     2000,
	"comment.sanitize":            false,
	"pagination.default_limit":    10,
	"pagination.max_limit":        100,
	"cache.enabled":               true,
	"cache.size":                  256,
	"cache.ttl":                   5 * time.Second,
	"cleanup.enabled":             false,
	"cleanup.interval":            time.Hour,
	"cleanup.batch_size":          500,
	"cors.allowed_methods":        []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"cors.allowed_headers":        []string{"Origin", "Content-Type", "X-Request-ID"},
	"log.level":                   "info",
	"log.format":                  "json",
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖，例如 DATABASE_DRIVER=sqlite
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default 返回只包含默认值的配置，主要用于测试
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	// 默认值均为合法类型，Unmarshal 不会失败
	_ = v.Unmarshal(&cfg)
	return &cfg
}

package config

import (
	"fmt"
	"strings"

	"github.com/liveshop-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Location LocationConfig `mapstructure:"location"`
	Earnings EarningsConfig `mapstructure:"earnings"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// DispatchConfig 派单引擎配置
type DispatchConfig struct {
	SearchRadiusKM       float64 `mapstructure:"search_radius_km"`
	MaxRounds            int     `mapstructure:"max_rounds"`
	OfferTimeoutSeconds  int     `mapstructure:"offer_timeout_seconds"`
	CandidatesPerRound   int     `mapstructure:"candidates_per_round"`
	RatingWeight         float64 `mapstructure:"rating_weight"`
	DistanceWeight       float64 `mapstructure:"distance_weight"`
	IdleWeight           float64 `mapstructure:"idle_weight"`
	DriverStaleSeconds   int     `mapstructure:"driver_stale_seconds"`
	SearchDeadlineExtend int     `mapstructure:"search_deadline_extend_seconds"`
}

// LocationConfig 位置追踪配置
type LocationConfig struct {
	IngestBuffer        int     `mapstructure:"ingest_buffer"`
	MinIntervalMillis   int     `mapstructure:"min_interval_millis"`
	AccuracyThresholdM  float64 `mapstructure:"accuracy_threshold_m"`
	MaxClockSkewSeconds int     `mapstructure:"max_clock_skew_seconds"`
}

// EarningsConfig 配送费结算配置
type EarningsConfig struct {
	Policy     string  `mapstructure:"policy"` // flat_plus_distance / flat
	BaseFee    string  `mapstructure:"base_fee"`
	PerKMFee   string  `mapstructure:"per_km_fee"`
	MinPayout  string  `mapstructure:"min_payout"`
	TipPercent float64 `mapstructure:"tip_percent"`
}

// GatewayConfig 支付网关配置
type GatewayConfig struct {
	WechatPay WechatPayConfig `mapstructure:"wechatpay"`
}

// WechatPayConfig 微信支付配置
type WechatPayConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	MchID             string `mapstructure:"mch_id"`
	MchCertSerialNo   string `mapstructure:"mch_cert_serial_no"`
	MchAPIv3Key       string `mapstructure:"mch_apiv3_key"`
	PrivateKeyPath    string `mapstructure:"private_key_path"`
	NotifyURL         string `mapstructure:"notify_url"`
	RefundNotifyURL   string `mapstructure:"refund_notify_url"`
	AppID             string `mapstructure:"app_id"`
	SkipVerifySandbox bool   `mapstructure:"skip_verify_sandbox"` // 仅本地联调使用
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	// 设置默认值（可选）
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "fulfillment.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/liveshop.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "ls")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("dispatch.search_radius_km", 5.0)
	viper.SetDefault("dispatch.max_rounds", 3)
	viper.SetDefault("dispatch.offer_timeout_seconds", 30)
	viper.SetDefault("dispatch.candidates_per_round", 10)
	viper.SetDefault("dispatch.rating_weight", 0.3)
	viper.SetDefault("dispatch.distance_weight", 0.5)
	viper.SetDefault("dispatch.idle_weight", 0.2)
	viper.SetDefault("dispatch.driver_stale_seconds", 120)
	viper.SetDefault("dispatch.search_deadline_extend_seconds", 10)
	viper.SetDefault("location.ingest_buffer", 1024)
	viper.SetDefault("location.min_interval_millis", 1000)
	viper.SetDefault("location.accuracy_threshold_m", 100.0)
	viper.SetDefault("location.max_clock_skew_seconds", 120)
	viper.SetDefault("earnings.policy", "flat_plus_distance")
	viper.SetDefault("earnings.base_fee", "5.00")
	viper.SetDefault("earnings.per_km_fee", "1.50")
	viper.SetDefault("earnings.min_payout", "6.00")
	viper.SetDefault("earnings.tip_percent", 100.0)
	viper.SetDefault("gateway.wechatpay.enabled", false)
	viper.SetDefault("gateway.wechatpay.mch_id", "")
	viper.SetDefault("gateway.wechatpay.mch_cert_serial_no", "")
	viper.SetDefault("gateway.wechatpay.mch_apiv3_key", "")
	viper.SetDefault("gateway.wechatpay.private_key_path", "")
	viper.SetDefault("gateway.wechatpay.notify_url", "")
	viper.SetDefault("gateway.wechatpay.refund_notify_url", "")
	viper.SetDefault("gateway.wechatpay.app_id", "")
	viper.SetDefault("gateway.wechatpay.skip_verify_sandbox", false)
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"Last-Event-ID",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

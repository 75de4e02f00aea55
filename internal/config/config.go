package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server         ServerConfig                   `mapstructure:"server"`         // 服务器配置（serve 模式）
	Database       DatabaseConfig                 `mapstructure:"database"`       // PostgreSQL配置
	Log            LogConfig                      `mapstructure:"log"`            // 日志配置
	Jobs           JobsConfig                     `mapstructure:"jobs"`           // 批处理参数
	Sync           SyncConfig                     `mapstructure:"sync"`           // 调度配置
	Storage        StorageConfig                  `mapstructure:"storage"`        // 源文件目录
	Events         EventsConfig                   `mapstructure:"events"`         // 完成事件发布
	Lock           LockConfig                     `mapstructure:"lock"`           // 任务锁
	Metrics        MetricsConfig                  `mapstructure:"metrics"`        // 指标
	Administrators map[string]AdministratorConfig `mapstructure:"administrators"` // 各administradora独立配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	SQLLogLevel     string        `mapstructure:"sql_log_level"`     // GORM日志级别：silent/error/warn/info
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug/info/warn/error
	Format     string `mapstructure:"format"`      // text/json
	Output     string `mapstructure:"output"`      // stdout/file/both
	File       string `mapstructure:"file"`        // 日志文件路径
	MaxSize    int    `mapstructure:"max_size"`    // MB
	MaxBackups int    `mapstructure:"max_backups"` // 保留旧文件数
	MaxAge     int    `mapstructure:"max_age"`     // 天
	Compress   bool   `mapstructure:"compress"`
}

// JobsConfig 批处理与出价计算参数，命令行参数可覆盖
type JobsConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`      // 每批领取的staging行数
	ClaimTTL       time.Duration `mapstructure:"claim_ttl"`       // 领取超时后可被其他运行重新领取
	LookbackMonths int           `mapstructure:"lookback_months"` // 出价回看月数
	MinAssemblies  int           `mapstructure:"min_assemblies"`  // 计算chosen bid所需的最少assembleia数
	MaxAssemblies  int           `mapstructure:"max_assemblies"`  // 截断上限（0 表示使用administradora默认值）
}

// SyncConfig 调度配置
type SyncConfig struct {
	Schedules map[string]string `mapstructure:"schedules"` // administradora -> Cron表达式
}

// StorageConfig 源文件目录（received -> processed）
type StorageConfig struct {
	ReceivedDir  string `mapstructure:"received_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
}

// EventsConfig 完成事件发布配置
type EventsConfig struct {
	Backend      string   `mapstructure:"backend"`        // kafka/amqp/log
	Brokers      []string `mapstructure:"brokers"`        // Kafka brokers
	Topic        string   `mapstructure:"topic"`          // Kafka topic
	AMQPURL      string   `mapstructure:"amqp_url"`       // RabbitMQ地址
	Exchange     string   `mapstructure:"exchange"`       // RabbitMQ topic exchange
	EventBusName string   `mapstructure:"event_bus_name"` // 事件总线名称（写入信封）
	Source       string   `mapstructure:"source"`         // 事件来源标识
	Timeout      int      `mapstructure:"timeout"`        // 发布超时（秒）
}

// LockConfig 任务锁配置（未配置Redis时退化为进程内无锁）
type LockConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"` // 锁过期时间；持有期间按 ttl/3 自动续期
}

// MetricsConfig Prometheus配置
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"` // 批任务结束时推送，空则不推送
}

// AdministratorConfig 单个administradora的独立配置
type AdministratorConfig struct {
	Source        string  `mapstructure:"source"`         // xlsx/csv/api
	Sheet         string  `mapstructure:"sheet"`          // xlsx工作表，空则取第一个
	HeaderRow     int     `mapstructure:"header_row"`     // 表头前需要跳过的行数
	Delimiter     string  `mapstructure:"delimiter"`      // csv分隔符，默认 ;
	Encoding      string  `mapstructure:"encoding"`       // utf-8/iso-8859-1
	Password      string  `mapstructure:"password"`       // xlsx密码（建议放.env）
	BaseURL       string  `mapstructure:"base_url"`       // 合作方API基础地址
	ResourcePath  string  `mapstructure:"resource_path"`  // 合作方API资源路径
	AuthToken     string  `mapstructure:"auth_token"`     // 合作方API Token
	Timeout       int     `mapstructure:"timeout"`        // 请求超时（秒）
	RetryCount    int     `mapstructure:"retry_count"`    // 总尝试次数
	RateLimit     float64 `mapstructure:"rate_limit"`     // 每秒请求数，0表示不限
	Proxy         string  `mapstructure:"proxy"`          // 代理地址
	DetailType    string  `mapstructure:"detail_type"`    // 完成事件detail_type
	AssetPolicy   string  `mapstructure:"asset_policy"`   // 覆盖bem版本替换策略：supersede_older/supersede_on_change/backfill_history
	VacancyPolicy string  `mapstructure:"vacancy_policy"` // 覆盖空缺数版本替换策略
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录加载 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.SetTypeByDefaultValue(true)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sql_log_level", "warn")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/consorcio-sync.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("jobs.batch_size", 1000)
	v.SetDefault("jobs.claim_ttl", 30*time.Minute)
	v.SetDefault("jobs.lookback_months", 6)
	v.SetDefault("jobs.min_assemblies", 3)
	v.SetDefault("storage.received_dir", "data/received")
	v.SetDefault("storage.processed_dir", "data/processed")
	v.SetDefault("events.backend", "log")
	v.SetDefault("events.source", "consorcio.etl")
	v.SetDefault("events.timeout", 10)
	v.SetDefault("lock.ttl", time.Hour)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Lock.RedisPassword = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	// 每个administradora的密钥：<CODE>_XLSX_PASSWORD / <CODE>_API_TOKEN
	for code, adm := range cfg.Administrators {
		prefix := strings.ToUpper(code)
		if v := os.Getenv(prefix + "_XLSX_PASSWORD"); v != "" {
			adm.Password = v
		}
		if v := os.Getenv(prefix + "_API_TOKEN"); v != "" {
			adm.AuthToken = v
		}
		cfg.Administrators[code] = adm
	}
}

// Administrator 获取administradora配置，未配置时返回零值与false
func (c *Config) Administrator(code string) (AdministratorConfig, bool) {
	adm, ok := c.Administrators[strings.ToLower(code)]
	return adm, ok
}

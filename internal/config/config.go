package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	AI       AIConfig
	Auth     AuthConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	Limits   LimitsConfig
	FreePlan FreePlanConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig 附件存储配置
type StorageConfig struct {
	Type  string // local, minio
	Local LocalStorageConfig
	MinIO MinIOStorageConfig
}

// LocalStorageConfig 本地存储配置
type LocalStorageConfig struct {
	BasePath  string
	URLPrefix string
}

// MinIOStorageConfig MinIO 存储配置
type MinIOStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// AIConfig AI配置
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	Alibaba  AlibabaConfig
	DeepSeek DeepSeekConfig
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AlibabaConfig 阿里云配置
type AlibabaConfig struct {
	AccessKeySecret string
	Model           string
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string
}

// QueueConfig 作业队列配置
type QueueConfig struct {
	Stream        string
	Group         string
	BlockSeconds  int
	ClaimIdleSecs int
	MaxDeliveries int
	MaxLen        int64
}

// WorkerConfig 回答工作池配置
type WorkerConfig struct {
	Concurrency        int
	MaxAttempts        int
	BackoffInitialSecs int
	TimeoutSecs        int
	LockTTLSecs        int
}

// LimitsConfig 提问校验限制
type LimitsConfig struct {
	MaxQuestionLength int
	MaxFileSize       int64
	AllowedFileTypes  []string
}

// FreePlanConfig 无订阅用户的默认套餐额度
type FreePlanConfig struct {
	MaxQuestionsPerMonth   int
	MaxChatsPerMonth       int
	MaxFileUploadsPerMonth int
	CreditMultiplier       float64
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("EDUAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Block 队列阻塞读取时长
func (c *QueueConfig) Block() time.Duration {
	return time.Duration(c.BlockSeconds) * time.Second
}

// ClaimIdle 消息空闲多久后可被其他消费者认领
func (c *QueueConfig) ClaimIdle() time.Duration {
	return time.Duration(c.ClaimIdleSecs) * time.Second
}

// BackoffInitial 首次重试前的等待时长，之后按指数递增
func (c *WorkerConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialSecs) * time.Second
}

// Timeout 单次推理调用的硬超时
func (c *WorkerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LockTTL 会话忙锁的保险过期时间
func (c *WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSecs) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "eduaiapp")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "eduaiapp")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "./data/files")
	v.SetDefault("storage.local.urlPrefix", "/files")

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")

	// Queue
	v.SetDefault("queue.stream", "eduai:questions")
	v.SetDefault("queue.group", "answer-workers")
	v.SetDefault("queue.blockSeconds", 5)
	v.SetDefault("queue.claimIdleSecs", 60)
	v.SetDefault("queue.maxDeliveries", 5)
	v.SetDefault("queue.maxLen", 10000)

	// Worker
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.maxAttempts", 3)
	v.SetDefault("worker.backoffInitialSecs", 2)
	v.SetDefault("worker.timeoutSecs", 60)
	v.SetDefault("worker.lockTTLSecs", 600)

	// Limits
	v.SetDefault("limits.maxQuestionLength", 4000)
	v.SetDefault("limits.maxFileSize", 10*1024*1024)
	v.SetDefault("limits.allowedFileTypes", []string{
		"image/png", "image/jpeg", "application/pdf", "text/plain",
	})

	// FreePlan
	v.SetDefault("freePlan.maxQuestionsPerMonth", 10)
	v.SetDefault("freePlan.maxChatsPerMonth", 20)
	v.SetDefault("freePlan.maxFileUploadsPerMonth", 5)
	v.SetDefault("freePlan.creditMultiplier", 1.0)
}

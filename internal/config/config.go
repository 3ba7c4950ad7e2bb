package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	TencentTTS TencentTTSConfig `mapstructure:"tencent_tts" validate:"required"`
	TTSEngine  TTSEngineConfig  `mapstructure:"tts_engine"`
	DeepSeek   DeepSeekConfig   `mapstructure:"deepseek"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache" validate:"required"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge" validate:"required"`
	Agent      AgentConfig      `mapstructure:"agent" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	Env            string   `mapstructure:"env" validate:"required,oneof=development staging production"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	URL           string `mapstructure:"url" validate:"required"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"min=0"`
}

// StorageConfig 音频文件存储配置
type StorageConfig struct {
	Provider string      `mapstructure:"provider" validate:"required,oneof=local minio"`
	LocalDir string      `mapstructure:"local_dir"`
	MinIO    MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// TencentTTSConfig 语音合成参数
// VoiceType 是缓存键归一化时的默认音色
type TencentTTSConfig struct {
	VoiceType  string `mapstructure:"voice_type" validate:"required"`
	Codec      string `mapstructure:"codec" validate:"required,oneof=mp3 wav pcm opus"`
	SampleRate int    `mapstructure:"sample_rate" validate:"required,oneof=8000 16000 24000"`
	Volume     int    `mapstructure:"volume" validate:"min=-10,max=10"`
}

// TTSEngineConfig OpenAI兼容的语音合成接口
type TTSEngineConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Voice   string `mapstructure:"voice"`
}

// DeepSeekConfig 大模型配置
type DeepSeekConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	APIKey  string  `mapstructure:"api_key"`
	Model   string  `mapstructure:"model"`
	RPS     float64 `mapstructure:"rps" validate:"gt=0"`
}

// SchedulerConfig 标签提取调度器配置
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" validate:"required,min=1"`
	HoursBack       int  `mapstructure:"hours_back" validate:"required,min=1"`
	DebounceMinutes int  `mapstructure:"debounce_minutes" validate:"min=0"`
}

// CacheConfig TTS缓存维护配置
type CacheConfig struct {
	SweepOlderThanDays int    `mapstructure:"sweep_older_than_days" validate:"required,min=1"`
	SweepCron          string `mapstructure:"sweep_cron" validate:"required"`
	StatsCron          string `mapstructure:"stats_cron" validate:"required"`
}

// KnowledgeConfig 知识库配置
type KnowledgeConfig struct {
	Dir        string `mapstructure:"dir" validate:"required"`
	LoadFromDB bool   `mapstructure:"load_from_db"`
	Watch      bool   `mapstructure:"watch"`
}

// AgentConfig 智能体标签同步配置
type AgentConfig struct {
	Mode    string   `mapstructure:"mode" validate:"required,oneof=kafka log"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UpdateCallback 配置更新回调
type UpdateCallback func(oldConfig, newConfig *Config)

// Loader 配置加载器
type Loader struct {
	viper     *viper.Viper
	validator *validator.Validate
	config    *Config
	callbacks []UpdateCallback
	watching  bool
	mu        sync.RWMutex
}

// AppConfig 全局配置，由 LoadConfig 设置
var AppConfig *Config

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("ZHITANG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		viper:     v,
		validator: validator.New(),
	}
}

// LoadConfig 加载配置并设置全局 AppConfig
func LoadConfig() error {
	cfg, err := NewLoader().Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load 依次读取默认值、配置文件、环境变量，并校验
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		l.viper.SetConfigFile(configFile)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigError("CONFIG_FILE", err.Error()).WithCause(err)
		}
	}

	l.loadLegacyEnv()

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigError("unmarshal", err.Error()).WithCause(err)
	}
	if err := l.validator.Struct(&cfg); err != nil {
		return nil, apperrors.NewConfigError("validate", err.Error()).WithCause(err)
	}
	return &cfg, nil
}

// OnChange 注册配置更新回调
func (l *Loader) OnChange(callback UpdateCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

// Watch 监听配置文件变化，仅在设置了 CONFIG_FILE 时生效
func (l *Loader) Watch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watching {
		return nil
	}
	if l.viper.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}

	l.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("配置文件已变更", zap.String("file", e.Name))
		l.reload()
	})
	l.viper.WatchConfig()
	l.watching = true
	return nil
}

// Get 获取当前配置副本
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return nil
	}
	cfg := *l.config
	return &cfg
}

func (l *Loader) reload() {
	newConfig, err := l.unmarshal()
	if err != nil {
		logger.Warn("配置重新加载失败，保留旧配置", zap.Error(err))
		return
	}

	l.mu.Lock()
	oldConfig := l.config
	l.config = newConfig
	callbacks := make([]UpdateCallback, len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(oldConfig, newConfig)
	}
}

// loadLegacyEnv 兼容部署脚本中不带前缀的环境变量
func (l *Loader) loadLegacyEnv() {
	legacy := map[string]string{
		"DATABASE_URL":     "database.url",
		"SERVER_PORT":      "server.port",
		"REDIS_ADDR":       "redis.addr",
		"DEEPSEEK_API_KEY": "deepseek.api_key",
		"KNOWLEDGE_DIR":    "knowledge.dir",
		"KAFKA_BROKERS":    "agent.brokers",
	}
	for env, key := range legacy {
		value := os.Getenv(env)
		if value == "" {
			continue
		}
		if key == "agent.brokers" {
			l.viper.Set(key, strings.Split(value, ","))
			continue
		}
		l.viper.Set(key, value)
	}
}

func (l *Loader) setDefaults() {
	v := l.viper

	v.SetDefault("server.port", 8001)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.migrations_dir", "./migrations")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_seconds", 3600)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "./data/tts")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "tts-cache")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("tencent_tts.voice_type", "7426720361753903141")
	v.SetDefault("tencent_tts.codec", "mp3")
	v.SetDefault("tencent_tts.sample_rate", 16000)
	v.SetDefault("tencent_tts.volume", 0)

	v.SetDefault("tts_engine.base_url", "")
	v.SetDefault("tts_engine.api_key", "")
	v.SetDefault("tts_engine.model", "tts-1")
	v.SetDefault("tts_engine.voice", "alloy")

	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.api_key", "")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("deepseek.rps", 2)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_seconds", 300)
	v.SetDefault("scheduler.hours_back", 24)
	v.SetDefault("scheduler.debounce_minutes", 60)

	v.SetDefault("cache.sweep_older_than_days", 30)
	v.SetDefault("cache.sweep_cron", "30 3 * * *")
	v.SetDefault("cache.stats_cron", "*/30 * * * *")

	v.SetDefault("knowledge.dir", "./knowledge_base")
	v.SetDefault("knowledge.load_from_db", true)
	v.SetDefault("knowledge.watch", true)

	v.SetDefault("agent.mode", "log")
	v.SetDefault("agent.brokers", []string{})
	v.SetDefault("agent.topic", "user-tag-sync")

	v.SetDefault("metrics.enabled", true)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	AI          AIConfig         `mapstructure:"ai"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Gemini      GeminiConfig     `mapstructure:"gemini"`
	Dataset     DatasetConfig    `mapstructure:"dataset"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Queue       QueueConfig      `mapstructure:"queue"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Engine      EngineConfig     `mapstructure:"engine"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// AIConfig 生成式後端設定
type AIConfig struct {
	Provider       string        `mapstructure:"provider"` // openrouter | gemini
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"` // 空值使用官方端點
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DatasetConfig 食譜資料庫設定
type DatasetConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	DSN              string        `mapstructure:"dsn"`
	Table            string        `mapstructure:"table"`
	IDColumn         string        `mapstructure:"id_column"`
	NameColumn       string        `mapstructure:"name_column"`
	IngredientColumn string        `mapstructure:"ingredient_column"`
	ImageColumn      string        `mapstructure:"image_column"`
	FetchCap         int           `mapstructure:"fetch_cap"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"` // memory | redis
	MaxSize       int           `mapstructure:"max_size"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

// QueueConfig 請求隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// EngineConfig 意圖解析預設值
type EngineConfig struct {
	MaxRecipes        int `mapstructure:"max_recipes"`
	MaxSubstitutes    int `mapstructure:"max_substitutes"`
	MaxContextResults int `mapstructure:"max_context_results"`
	// MaxResultsCap 呼叫端傳入 max_results 的上限
	MaxResultsCap int `mapstructure:"max_results_cap"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 可以不存在，環境變數仍然有效
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("openrouter.enabled", "OPENROUTER_ENABLED")
	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("gemini.enabled", "GEMINI_ENABLED")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("dataset.enabled", "DATASET_ENABLED")
	viper.BindEnv("dataset.dsn", "DATASET_DSN", "DATABASE_URL")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.backend", "CACHE_BACKEND")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("server.port", "PORT")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration",
		"ai_provider:", viper.GetString("ai.provider"),
		"openrouter_model:", viper.GetString("openrouter.model"),
		"gemini_model:", viper.GetString("gemini.model"),
		"dataset_enabled:", viper.GetBool("dataset.enabled"),
	)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-resolver")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "130s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "120s")
	viper.SetDefault("server.max_body_bytes", 1<<20)

	// 生成式後端
	viper.SetDefault("ai.provider", "openrouter")
	viper.SetDefault("ai.request_timeout", "60s")

	viper.SetDefault("openrouter.enabled", true)
	viper.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	viper.SetDefault("openrouter.max_tokens", 1500)
	viper.SetDefault("openrouter.temperature", 0.7)
	viper.SetDefault("openrouter.timeout", "60s")

	viper.SetDefault("gemini.enabled", false)
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.max_tokens", 1500)
	viper.SetDefault("gemini.timeout", "60s")

	// 食譜資料庫（Supabase 的 recipes 表）
	viper.SetDefault("dataset.enabled", false)
	viper.SetDefault("dataset.table", "recipes")
	viper.SetDefault("dataset.id_column", "id")
	viper.SetDefault("dataset.name_column", "recipe_name")
	viper.SetDefault("dataset.ingredient_column", "ingredients")
	viper.SetDefault("dataset.image_column", "img_src")
	viper.SetDefault("dataset.fetch_cap", 100)
	viper.SetDefault("dataset.query_timeout", "5s")
	viper.SetDefault("dataset.max_open_conns", 10)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.key_prefix", "recipe-resolver:ai:")

	// 隊列設定
	viper.SetDefault("queue.workers", 5)
	viper.SetDefault("queue.max_size", 100)

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// 意圖解析預設值
	viper.SetDefault("engine.max_recipes", 5)
	viper.SetDefault("engine.max_substitutes", 5)
	viper.SetDefault("engine.max_context_results", 10)
	viper.SetDefault("engine.max_results_cap", 50)

	viper.SetDefault("dedup_window", "1s")
	viper.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if config.Server.RequestTimeout <= 0 {
		return fmt.Errorf("invalid server request timeout")
	}

	switch strings.ToLower(config.AI.Provider) {
	case "openrouter", "gemini":
	default:
		return fmt.Errorf("unsupported ai provider: %q", config.AI.Provider)
	}

	if config.Dataset.Enabled {
		if strings.TrimSpace(config.Dataset.DSN) == "" {
			return fmt.Errorf("dataset dsn is required when dataset is enabled")
		}
		if config.Dataset.FetchCap <= 0 {
			return fmt.Errorf("invalid dataset fetch cap")
		}
	}

	if config.Cache.Enabled {
		switch strings.ToLower(config.Cache.Backend) {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
		case "redis":
			if strings.TrimSpace(config.Cache.RedisAddr) == "" {
				return fmt.Errorf("redis address is required for redis cache")
			}
		default:
			return fmt.Errorf("unsupported cache backend: %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	if config.Engine.MaxRecipes <= 0 || config.Engine.MaxSubstitutes <= 0 || config.Engine.MaxContextResults <= 0 {
		return fmt.Errorf("engine result caps must be positive")
	}
	if config.Engine.MaxResultsCap < config.Engine.MaxRecipes ||
		config.Engine.MaxResultsCap < config.Engine.MaxSubstitutes ||
		config.Engine.MaxResultsCap < config.Engine.MaxContextResults {
		return fmt.Errorf("engine max results cap must not be below the defaults")
	}

	return nil
}

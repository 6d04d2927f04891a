package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Host string
	Port string
	// Out-of-scope answers carry this code in the error card.
	OutOfScopeErrorCode int
	AllowedOrigin       string
	LogLevel            string
	LogFormat           string

	Model   ModelConfig
	Session SessionConfig

	// Service catalog markdown injected into every prompt
	CatalogFile string
	// Optional prompt template override; empty uses the embedded one
	PromptFile string
}

// ModelConfig holds the chat completion client settings.
type ModelConfig struct {
	APIKey     string
	Endpoint   string // Azure endpoint; empty means api.openai.com
	APIVersion string
	Name       string
	Retries    int
	MaxTokens  int
	Timeout    time.Duration
	// Temperature and TopP are float32 because that is what the client takes.
	Temperature float32
	TopP        float32
	Stream      bool
	Seed        int
	MemoryK     int
}

// SessionConfig selects and configures the conversation history backend.
type SessionConfig struct {
	Backend string // redis | postgres | file | memory
	TTL     time.Duration

	RedisHost      string
	RedisPort      string
	RedisDB        int
	RedisPassword  string
	RedisTLS       bool
	RedisKeyPrefix string

	DatabaseURL string
	Dir         string
}

var backends = map[string]bool{"redis": true, "postgres": true, "file": true, "memory": true}

// Load reads .env (if present), then an optional config file, then the
// environment. Keys may be suffixed with the upper-cased APP_ENV
// (e.g. AZURE_OPENAI_API_KEY_PROD); the suffixed value wins.
func Load(configFile string) (Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "DEV")
	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", "5000")
	v.SetDefault("OUT_OF_SCOPE_ERROR_CODE", 429)
	v.SetDefault("ALLOWED_ORIGIN", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CATALOG_FILE", "utils/output.md")
	v.SetDefault("PROMPT_FILE", "")

	v.SetDefault("AZURE_OPENAI_VERSION", "2024-06-01")
	v.SetDefault("AZURE_OPENAI_RETRIES", 2)
	v.SetDefault("MODEL_NAME", "gpt-4o")
	v.SetDefault("MODEL_MAX_TOKENS", 300)
	v.SetDefault("MODEL_TIMEOUT_SECONDS", 30.0)
	v.SetDefault("MODEL_TEMPERATURE", 0.0)
	v.SetDefault("MODEL_TOP_P", 1.0)
	v.SetDefault("MODEL_STREAM", false)
	v.SetDefault("MODEL_SEED", 42)
	v.SetDefault("MEMORY_K", 3)

	v.SetDefault("SESSION_BACKEND", "redis")
	v.SetDefault("SESSION_TTL", "0s")
	v.SetDefault("SESSION_DIR", "data/sessions")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TLS", true)
	v.SetDefault("REDIS_KEY_PREFIX", "")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	env := strings.ToUpper(strings.TrimSpace(v.GetString("APP_ENV")))
	get := scoped(v, env)

	timeout := time.Duration(v.GetFloat64("MODEL_TIMEOUT_SECONDS") * float64(time.Second))
	retries := atoiDefault(get("AZURE_OPENAI_RETRIES"), 2)
	if v.IsSet("MODEL_RETRIES") {
		retries = v.GetInt("MODEL_RETRIES")
	}
	apiKey := get("AZURE_OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = v.GetString("OPENAI_API_KEY")
	}
	redisDB := atoiDefault(get("REDIS_DB"), 0)

	return Config{
		Env:                 env,
		Host:                v.GetString("HOST"),
		Port:                v.GetString("PORT"),
		OutOfScopeErrorCode: v.GetInt("OUT_OF_SCOPE_ERROR_CODE"),
		AllowedOrigin:       v.GetString("ALLOWED_ORIGIN"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:           strings.ToLower(v.GetString("LOG_FORMAT")),
		CatalogFile:         v.GetString("CATALOG_FILE"),
		PromptFile:          v.GetString("PROMPT_FILE"),
		Model: ModelConfig{
			APIKey:      apiKey,
			Endpoint:    get("AZURE_OPENAI_ENDPOINT"),
			APIVersion:  get("AZURE_OPENAI_VERSION"),
			Name:        v.GetString("MODEL_NAME"),
			Retries:     retries,
			MaxTokens:   v.GetInt("MODEL_MAX_TOKENS"),
			Timeout:     timeout,
			Temperature: float32(v.GetFloat64("MODEL_TEMPERATURE")),
			TopP:        float32(v.GetFloat64("MODEL_TOP_P")),
			Stream:      v.GetBool("MODEL_STREAM"),
			Seed:        v.GetInt("MODEL_SEED"),
			MemoryK:     v.GetInt("MEMORY_K"),
		},
		Session: SessionConfig{
			Backend:        strings.ToLower(v.GetString("SESSION_BACKEND")),
			TTL:            v.GetDuration("SESSION_TTL"),
			RedisHost:      get("REDIS_HOST"),
			RedisPort:      get("REDIS_PORT"),
			RedisDB:        redisDB,
			RedisPassword:  get("REDIS_PASSWORD"),
			RedisTLS:       v.GetBool("REDIS_TLS"),
			RedisKeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
			DatabaseURL:    get("DB_URL"),
			Dir:            v.GetString("SESSION_DIR"),
		},
	}
}

// scoped looks a key up with the _<ENV> suffix first, then without it.
func scoped(v *viper.Viper, env string) func(string) string {
	return func(key string) string {
		if env != "" {
			if s := strings.TrimSpace(v.GetString(key + "_" + env)); s != "" {
				return s
			}
		}
		return strings.TrimSpace(v.GetString(key))
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Validate checks values the server cannot run without.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Model.MemoryK < 1 {
		return fmt.Errorf("MEMORY_K must be >= 1, got %d", c.Model.MemoryK)
	}
	if c.Model.MaxTokens < 1 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be >= 1")
	}
	if c.Model.Retries < 0 {
		return fmt.Errorf("model retries must be >= 0")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT_SECONDS must be > 0")
	}
	if c.CatalogFile == "" {
		return fmt.Errorf("CATALOG_FILE cannot be empty")
	}
	if !backends[c.Session.Backend] {
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Session.Backend == "postgres" && c.Session.DatabaseURL == "" {
		return fmt.Errorf("DB_URL is required for the postgres session backend")
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

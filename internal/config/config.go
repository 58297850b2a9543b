package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/satriahrh/suara/domain"
)

// Provider names accepted by asr.provider and llm.provider
const (
	ProviderMock   = "mock"
	ProviderGoogle = "google"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Worker WorkerConfig `mapstructure:"worker"`
	Audio  AudioConfig  `mapstructure:"audio"`
	ASR    ASRConfig    `mapstructure:"asr"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Stats  StatsConfig  `mapstructure:"stats"`
	Log    LogConfig    `mapstructure:"log"`

	// APIKey is the shared credential used by any provider without its own key
	APIKey string `mapstructure:"api_key"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	WSPath          string        `mapstructure:"ws_path"`
	ReadLimitBytes  int64         `mapstructure:"read_limit_bytes"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

type AudioConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

type ASRConfig struct {
	Provider string        `mapstructure:"provider"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
	APIKey   string        `mapstructure:"api_key"`
}

type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	APIKey       string        `mapstructure:"api_key"`
}

type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env (if present), an optional YAML file named by CONFIG_FILE,
// and environment variables such as LLM_PROVIDER or SERVER_PORT.
func Load() (Config, error) {
	// a missing .env is fine, real environments set variables directly
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is what most hosting platforms inject
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("api_key", "API_KEY", "DASHSCOPE_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.ASR.Provider = strings.ToLower(strings.TrimSpace(cfg.ASR.Provider))
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.ws_path", "/ws/chat")
	v.SetDefault("server.read_limit_bytes", 16<<20)
	v.SetDefault("server.write_wait", 10*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)
	v.SetDefault("server.send_buffer", 16)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("worker.pool_size", 16)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("asr.provider", ProviderGoogle)
	v.SetDefault("asr.language", "en-US")
	v.SetDefault("asr.timeout", 30*time.Second)
	v.SetDefault("asr.api_key", "")
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.system_prompt", "You are a helpful voice assistant.")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("api_key", "")
	v.SetDefault("stats.interval", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// ASRKey returns the credential for the recognition backend
func (c Config) ASRKey() string {
	if c.ASR.APIKey != "" {
		return c.ASR.APIKey
	}
	return c.APIKey
}

// LLMKey returns the credential for the generation backend
func (c Config) LLMKey() string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	return c.APIKey
}

// Validate reports the first setting that prevents the server from starting
func (c Config) Validate() error {
	switch c.ASR.Provider {
	case ProviderMock:
	case ProviderGoogle:
		// google also accepts application default credentials
		if c.ASRKey() == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			return &domain.StartupError{Key: "asr.api_key", Reason: "credential is required for the google provider"}
		}
	default:
		return &domain.StartupError{Key: "asr.provider", Reason: fmt.Sprintf("unknown provider %q", c.ASR.Provider)}
	}

	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderGemini, ProviderOpenAI:
		if c.LLMKey() == "" {
			return &domain.StartupError{Key: "llm.api_key", Reason: fmt.Sprintf("credential is required for the %s provider", c.LLM.Provider)}
		}
	default:
		return &domain.StartupError{Key: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", c.LLM.Provider)}
	}

	if c.Worker.PoolSize <= 0 {
		return &domain.StartupError{Key: "worker.pool_size", Reason: "must be positive"}
	}
	if c.Server.Port == "" {
		return &domain.StartupError{Key: "server.port", Reason: "must not be empty"}
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return &domain.StartupError{Key: "server.ws_path", Reason: "must start with /"}
	}
	return nil
}

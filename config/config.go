package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	KnowledgeDir   string        `mapstructure:"knowledge_dir"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	AuthEnabled  bool   `mapstructure:"auth_enabled"`
	AdminEmail   string `mapstructure:"admin_email"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt hash of the admin password
}

func (s ServerConfig) Validate() error {
	if !s.AuthEnabled {
		return nil
	}
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret required when auth is enabled")
	}
	if strings.TrimSpace(s.PasswordHash) == "" {
		return fmt.Errorf("server.password_hash required when auth is enabled")
	}
	return nil
}

// LLMConfig contains text-generation and embedding provider settings
type LLMConfig struct {
	Provider       string          `mapstructure:"provider"` // openai-compatible
	APIKey         string          `mapstructure:"api_key"`
	BaseURL        string          `mapstructure:"base_url"`
	Model          string          `mapstructure:"model"`
	EmbeddingModel string          `mapstructure:"embedding_model"`
	Temperature    float64         `mapstructure:"temperature"`
	MaxTokens      int             `mapstructure:"max_tokens"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	Retry          RetryConfig     `mapstructure:"retry"`
	Breaker        CircuitedConfig `mapstructure:"breaker"`
}

// RetryConfig controls retry-with-backoff around collaborator calls
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// CircuitedConfig controls the circuit breaker around collaborator calls
type CircuitedConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Provider   string `mapstructure:"provider"` // tavily | brave | serper
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
	FetchPages bool   `mapstructure:"fetch_pages"` // fetch result URLs and extract readable text
}

// RetrievalConfig contains hybrid retrieval settings
type RetrievalConfig struct {
	TopK         int     `mapstructure:"top_k"`  // recall size per source
	TopN         int     `mapstructure:"top_n"`  // size after rerank/truncation
	VectorWeight float64 `mapstructure:"vector_weight"`
	UseRerank    bool    `mapstructure:"use_rerank"`
	RerankURL    string  `mapstructure:"rerank_url"`
	RerankAPIKey string  `mapstructure:"rerank_api_key"`
	ChunkSize    int     `mapstructure:"chunk_size"`
	ChunkOverlap int     `mapstructure:"chunk_overlap"`
	Parallelism  int     `mapstructure:"parallelism"` // fan-out worker pool size
}

// WorkflowConfig contains workflow engine settings
type WorkflowConfig struct {
	LoopCap        int  `mapstructure:"loop_cap"`
	MaxHistory     int  `mapstructure:"max_history"` // messages kept in conversation history
	MultiQuery     bool `mapstructure:"multi_query"`
	RequireApprove bool `mapstructure:"require_approve"` // pause before search nodes
}

// StorageConfig contains checkpoint store settings
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // memory | redis | postgres
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the individual fields
// unless an explicit URL was configured.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// LoadConfig loads config from file. An empty path searches the usual
// locations; env vars with the QUESTOR_ prefix override file values.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("general.knowledge_dir", "./data/knowledge")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("llm.retry.max_retries", 3)
	viper.SetDefault("llm.retry.base_delay", "2s")
	viper.SetDefault("llm.retry.max_delay", "30s")
	viper.SetDefault("llm.breaker.failure_threshold", 5)
	viper.SetDefault("llm.breaker.recovery_timeout", "60s")
	viper.SetDefault("search.provider", "tavily")
	viper.SetDefault("search.max_results", 3)
	viper.SetDefault("retrieval.top_k", 20)
	viper.SetDefault("retrieval.top_n", 5)
	viper.SetDefault("retrieval.vector_weight", 0.6)
	viper.SetDefault("retrieval.use_rerank", true)
	viper.SetDefault("retrieval.chunk_size", 500)
	viper.SetDefault("retrieval.chunk_overlap", 100)
	viper.SetDefault("retrieval.parallelism", 5)
	viper.SetDefault("workflow.loop_cap", 3)
	viper.SetDefault("workflow.max_history", 10)
	viper.SetDefault("workflow.multi_query", true)
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.redis.timeout", "5s")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("QUESTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine: defaults plus env cover the common case.
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Backend {
	case "", "memory":
	case "redis":
		if err := cfg.Storage.Redis.Validate(); err != nil {
			return nil, err
		}
	case "postgres":
		if err := cfg.Storage.Postgres.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Advisor    AdvisorConfig
	Cache      CacheConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
	Retrieval  RetrievalConfig
}

// PostgreSQLConfig holds the optional catalog database configuration.
// An absent catalog is not an error: the advisor degrades to running
// without the pre-filter and the run log.
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// AdvisorConfig holds the recommendation pipeline knobs
type AdvisorConfig struct {
	MaxCandidates int    // candidates requested from the generator
	EnrichRepeats int    // repeat queries per candidate, must be >= 1
	Workers       int    // bounded fan-out across candidates
	TopN          int    // shortlist size
	RankPolicy    string // "reliability" (default) or "cost"
}

// CacheConfig holds the profile-keyed result cache configuration
type CacheConfig struct {
	Size       int
	TTLMinutes int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds the text-generation backend configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string
	ChatTemperature     float64
	ChatTopP            float64
	ChatMaxTokens       int
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	Timeout             int
	Enabled             bool
}

// RetrievalConfig holds the information-retrieval backend configuration
// (an OpenAI-compatible API with web-grounded models, e.g. Perplexity)
type RetrievalConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout int
	Enabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "car_catalog"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Advisor: AdvisorConfig{
			MaxCandidates: getEnvAsInt("ADVISOR_MAX_CANDIDATES", 7),
			EnrichRepeats: getEnvAsInt("ADVISOR_ENRICH_REPEATS", 3),
			Workers:       getEnvAsInt("ADVISOR_WORKERS", 4),
			TopN:          getEnvAsInt("ADVISOR_TOP_N", 5),
			RankPolicy:    getEnv("RANK_POLICY", "reliability"),
		},
		Cache: CacheConfig{
			Size:       getEnvAsInt("CACHE_SIZE", 128),
			TTLMinutes: getEnvAsInt("CACHE_TTL_MINUTES", 15),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.2),
			ChatTopP:            getEnvAsFloat("OPENAI_CHAT_TOP_P", 0.7),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 4096),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			Timeout:             getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Retrieval: RetrievalConfig{
			APIKey:  getEnv("RETRIEVAL_API_KEY", ""),
			APIBase: getEnv("RETRIEVAL_API_BASE", "https://api.perplexity.ai"),
			Model:   getEnv("RETRIEVAL_MODEL", "sonar"),
			Timeout: getEnvAsInt("RETRIEVAL_TIMEOUT", 45),
			Enabled: getEnv("RETRIEVAL_API_KEY", "") != "",
		},
	}
	cfg.PostgreSQL.Enabled = cfg.PostgreSQL.DSN != "" || os.Getenv("PG_HOST") != ""

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations the pipeline cannot run under.
// A misconfigured process must refuse to start rather than run partially.
func (c *Config) validate() error {
	if c.Advisor.EnrichRepeats < 1 {
		return fmt.Errorf("ADVISOR_ENRICH_REPEATS must be >= 1, got %d", c.Advisor.EnrichRepeats)
	}
	if c.Advisor.Workers < 1 {
		return fmt.Errorf("ADVISOR_WORKERS must be >= 1, got %d", c.Advisor.Workers)
	}
	if c.Advisor.TopN < 1 {
		return fmt.Errorf("ADVISOR_TOP_N must be >= 1, got %d", c.Advisor.TopN)
	}
	if p := c.Advisor.RankPolicy; p != "reliability" && p != "cost" {
		return fmt.Errorf("RANK_POLICY must be \"reliability\" or \"cost\", got %q", p)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("CACHE_SIZE must be >= 1, got %d", c.Cache.Size)
	}
	return nil
}

// GetPostgreSQLDSN returns the catalog connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Backend names for the vector store selection.
const (
	BackendChromem  = "chromem"
	BackendPostgres = "postgres"
)

// Config holds the application-wide settings.
type Config struct {
	// OpenAI API settings
	OpenAI OpenAIConfig

	// Vector store selection and settings
	Store StoreConfig

	// Database settings (postgres backend)
	Database DatabaseConfig

	// Retrieval and context assembly settings
	Retrieval RetrievalConfig

	// Ingestion settings
	Ingest IngestConfig

	// Daily spend guard settings
	Budget BudgetConfig

	// Logging settings
	Log LogConfig
}

// OpenAIConfig holds the OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
	Temperature        float64
	MaxTokens          int
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend     string // "chromem" or "postgres"
	ChromemPath string // empty = in-memory
	RegistryDir string // file registry location (chromem backend)
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RetrievalConfig holds the retrieval width and context budgets.
type RetrievalConfig struct {
	TopK               int
	MaxBlocks          int
	MaxContextChars    int
	MaxQuoteChars      int
	MaxQuotes          int
	MaxTotalQuoteChars int
	MaxReplyChars      int // last-ditch answer body clamp; 0 disables
	HistoryLimit       int
}

// IngestConfig holds the ingestion settings.
type IngestConfig struct {
	ManifestPath  string
	MaxChunkChars int
	ChunkOverlap  int
}

// BudgetConfig holds the daily spend guard settings.
type BudgetConfig struct {
	LedgerPath    string
	DailyLimitUSD float64
	PerCallUSD    float64
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load reads settings from the environment, optionally seeded from a .env
// file. A missing .env file is not an error; the environment alone suffices.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 3072),
			ChatModel:          getEnv("CHAT_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("CHAT_TEMPERATURE", 0.3),
			MaxTokens:          getEnvAsInt("CHAT_MAX_TOKENS", 0),
		},
		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", BackendChromem),
			ChromemPath: getEnv("CHROMEM_PATH", "./db/chromem"),
			RegistryDir: getEnv("REGISTRY_DIR", "./db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "bigbook"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "bigbook"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Retrieval: RetrievalConfig{
			TopK:               getEnvAsInt("TOP_K", 30),
			MaxBlocks:          getEnvAsInt("MAX_BLOCKS", 6),
			MaxContextChars:    getEnvAsInt("MAX_CONTEXT_CHARS", 12000),
			MaxQuoteChars:      getEnvAsInt("MAX_QUOTE_CHARS", 450),
			MaxQuotes:          getEnvAsInt("MAX_QUOTES", 4),
			MaxTotalQuoteChars: getEnvAsInt("MAX_TOTAL_QUOTE_CHARS", 1200),
			MaxReplyChars:      getEnvAsInt("MAX_REPLY_CHARS", 0),
			HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 10),
		},
		Ingest: IngestConfig{
			ManifestPath:  getEnv("SOURCES_MANIFEST", "./data/sources.yaml"),
			MaxChunkChars: getEnvAsInt("CHUNK_MAX_CHARS", 1200),
			ChunkOverlap:  getEnvAsInt("CHUNK_OVERLAP", 150),
		},
		Budget: BudgetConfig{
			LedgerPath:    getEnv("SPEND_LEDGER_PATH", "./db/spend.json"),
			DailyLimitUSD: getEnvAsFloat("DAILY_BUDGET_USD", 1.0),
			PerCallUSD:    getEnvAsFloat("PER_CALL_USD", 0.01),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch c.Store.Backend {
	case BackendChromem, BackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendChromem, BackendPostgres, c.Store.Backend)
	}

	if c.OpenAI.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}

	return nil
}

// getEnv returns the environment variable, or defaultValue when unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads the environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat reads the environment variable as a float.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

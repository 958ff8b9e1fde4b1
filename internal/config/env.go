package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	Port         string
	LogMode      string
	Workers      int
	QueueDepth   int

	// Primary provider (OpenAI-compatible).
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	EmbedModel    string
	EmbedDim      int

	// Optional Groq-backed alternative route for query/question augmentation.
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// Optional Gemini provider (PROVIDER=gemini).
	Provider     string
	GeminiAPIKey string
	GeminiModel  string

	// Groq free-tier budget.
	GroqRequestsPerMinute int
	GroqRequestsPerDay    int
	GroqTokensPerMinute   int
	GroqTokensPerDay      int

	// Object storage for uploaded source files.
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// Pipeline tuning.
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		LogMode:     getEnv("LOG_MODE", "dev"),
		Workers:     getEnvInt("INGEST_WORKERS", 2),
		QueueDepth:  getEnvInt("INGEST_QUEUE_DEPTH", 64),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		ChatModel:     getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),

		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),

		Provider:     getEnv("PROVIDER", "openai"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		GroqRequestsPerMinute: getEnvInt("GROQ_RPM", 30),
		GroqRequestsPerDay:    getEnvInt("GROQ_RPD", 14400),
		GroqTokensPerMinute:   getEnvInt("GROQ_TPM", 6000),
		GroqTokensPerDay:      getEnvInt("GROQ_TPD", 500000),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "chatmate-docs"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1024),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 20),
		BatchSize:    getEnvInt("BATCH_SIZE", 100),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

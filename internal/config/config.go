package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	// LLMTimeout is the hard timeout on a single completion call. It must be
	// shorter than any host-level request timeout so a gateway timeout is
	// observable instead of surfacing as a dropped connection.
	LLMTimeout time.Duration

	DBPath    string
	UploadDir string
	// MaxUploadBytes caps the size of an uploaded document.
	MaxUploadBytes int64

	// ChunkSize and ChunkOverlap control the character window used when
	// splitting extracted text. MinChunkLength drops fragments too short to
	// be useful retrieval units.
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int

	// RetrievalTopK and RetrievalMinScore control how many chunks a chat
	// turn may use and the similarity cutoff below which chunks are ignored.
	RetrievalTopK     int
	RetrievalMinScore float64

	// HistoryCap is the maximum number of messages retained per session.
	// Oldest messages are dropped first. The cap counts messages, not tokens.
	HistoryCap int

	APIPort   string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModelName: getEnv("LLM_MODEL", "deepseek/deepseek-chat-v3-0324:free"),
		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		DBPath:       getEnv("DB_PATH", "./data/pilot-rag.db"),
		UploadDir:    getEnv("UPLOAD_DIR", "./data/uploads"),
		APIPort:      getEnv("API_PORT", "9000"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	var parseErr error
	cfg.LLMTimeout = time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 15, &parseErr)) * time.Second
	cfg.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_MIB", 16, &parseErr)) * 1024 * 1024
	cfg.ChunkSize = getEnvInt("CHUNK_SIZE", 1000, &parseErr)
	cfg.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", 200, &parseErr)
	cfg.MinChunkLength = getEnvInt("MIN_CHUNK_LENGTH", 50, &parseErr)
	cfg.RetrievalTopK = getEnvInt("RETRIEVAL_TOP_K", 5, &parseErr)
	cfg.HistoryCap = getEnvInt("HISTORY_CAP", 20, &parseErr)
	if parseErr != nil {
		return nil, parseErr
	}

	minScoreStr := getEnv("RETRIEVAL_MIN_SCORE", "0.1")
	minScore, err := strconv.ParseFloat(minScoreStr, 64)
	if err != nil {
		return nil, fmt.Errorf("RETRIEVAL_MIN_SCORE must be a valid float: %w", err)
	}
	cfg.RetrievalMinScore = minScore

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be non-negative and smaller than CHUNK_SIZE")
	}
	if cfg.RetrievalTopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be greater than 0")
	}
	if cfg.HistoryCap <= 1 {
		return nil, fmt.Errorf("HISTORY_CAP must be greater than 1")
	}
	if cfg.LLMTimeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT_SECONDS must be greater than 0")
	}

	// Create data and upload directories if they don't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
// The first parse failure is recorded in errOut.
func getEnvInt(key string, defaultValue int, errOut *error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		if *errOut == nil {
			*errOut = fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return defaultValue
	}
	return n
}

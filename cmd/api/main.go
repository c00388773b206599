package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"strings"

	"pilot-rag/internal/chat"
	"pilot-rag/internal/config"
	"pilot-rag/internal/handlers"
	"pilot-rag/internal/http"
	"pilot-rag/internal/index"
	"pilot-rag/internal/ingest"
	"pilot-rag/internal/llm"
	"pilot-rag/internal/retrieval"
	"pilot-rag/internal/session"
	"pilot-rag/internal/storage"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	// Build the retrieval index over whatever survived the last run
	idx := index.NewTFIDFIndex()
	retriever := retrieval.NewRetriever(chunkRepo, docRepo, idx)

	ctx := context.Background()
	if err := retriever.Rebuild(ctx); err != nil {
		log.Fatalf("Failed to build retrieval index: %v", err)
	}
	slog.Info("Retrieval index ready", "size", idx.Size())

	// Create ingestion pipeline
	pipeline := ingest.NewPipeline(
		docRepo,
		chunkRepo,
		ingest.NewPDFExtractor(),
		ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		retriever,
		cfg.UploadDir,
		cfg.MaxUploadBytes,
		cfg.MinChunkLength,
	)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMTimeout)

	// Create chat service
	chatService := chat.NewService(retriever, llmClient, chat.Config{
		TopK:           cfg.RetrievalTopK,
		MinScore:       cfg.RetrievalMinScore,
		HistoryCap:     cfg.HistoryCap,
		DefaultModel:   cfg.LLMModelName,
		FallbackAPIKey: cfg.LLMAPIKey,
	})
	slog.Info("Chat service initialized", "model", cfg.LLMModelName)

	// Session store
	sessions := session.NewMemoryStore()

	// Create router with dependencies
	deps := &http.Deps{
		Documents:    handlers.NewDocumentsHandler(pipeline, cfg.MaxUploadBytes),
		Chat:         handlers.NewChatHandler(chatService, sessions),
		SessionStore: sessions,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

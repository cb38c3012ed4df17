package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/config"
	"rag-backend/internal/db"
	"rag-backend/internal/embedding"
	"rag-backend/internal/loader"
	"rag-backend/internal/vectorstore"
	"rag-backend/internal/vectorstore/chromem"
	"rag-backend/internal/vectorstore/qdrant"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.Loader.SourceDir, cfg.Loader.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Error creating directory")
		}
	}

	if err := waitForService(ctx, cfg.Ollama.Host+"/api/tags", "Ollama"); err != nil {
		log.Fatal().Err(err).Msg("Ollama never became ready")
	}
	if cfg.VectorStore.Type == "qdrant" {
		if err := waitForService(ctx, cfg.VectorStore.Qdrant.URL+"/readyz", "Qdrant"); err != nil {
			log.Fatal().Err(err).Msg("Qdrant never became ready")
		}
	}

	database := db.Connect(&cfg.Postgres)
	defer database.Close()
	if err := database.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	embedder := embedding.NewClient(cfg.Ollama.Host, cfg.Ollama.EmbeddingModel, cfg.Ollama.EmbedTimeout())

	dim, err := embedder.Dimension(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error probing embedding dimension")
	}
	log.Info().Int("dimension", dim).Str("model", cfg.Ollama.EmbeddingModel).Msg("Embedding model ready")

	store, err := buildVectorStore(&cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector store")
	}
	if err := store.EnsureCollection(ctx, dim); err != nil {
		log.Fatal().Err(err).Msg("Error ensuring vector collection")
	}

	l := loader.New(cfg.Loader.SourceDir, cfg.Loader.ProcessedDir, cfg.Loader.ChunkSize, embedder, store, database)

	log.Info().
		Str("source", cfg.Loader.SourceDir).
		Str("processed", cfg.Loader.ProcessedDir).
		Dur("interval", cfg.Loader.ScanInterval()).
		Msg("Loader started")
	l.Run(ctx, cfg.Loader.ScanInterval())
	log.Info().Msg("Loader stopped")
}

func buildVectorStore(cfg *config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Type {
	case "qdrant":
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout(),
		}), nil
	case "chromem":
		return chromem.NewStore(cfg.Chromem.Path, cfg.Chromem.Collection)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.Type)
	}
}

// waitForService polls url every 5s until it answers 200 OK.
func waitForService(ctx context.Context, url, name string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Info().Str("service", name).Msg("Service is ready")
				return nil
			}
		}
		log.Info().Str("service", name).Str("url", url).Msg("Waiting for service")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/config"
	"rag-backend/internal/db"
	"rag-backend/internal/embedding"
	"rag-backend/internal/llm"
	"rag-backend/internal/rag"
	"rag-backend/internal/server"
	"rag-backend/internal/vectorstore"
	"rag-backend/internal/vectorstore/chromem"
	"rag-backend/internal/vectorstore/qdrant"
	"rag-backend/internal/worker"
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

	database := db.Connect(&cfg.Postgres)
	defer database.Close()

	if err := database.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}
	log.Info().Msg("Database tables initialized")

	embedder := embedding.NewClient(cfg.Ollama.Host, cfg.Ollama.EmbeddingModel, cfg.Ollama.EmbedTimeout())
	generator := llm.NewClient(cfg.Ollama.Host, cfg.Ollama.GenerationModel, cfg.Ollama.GenerateTimeout())

	store, err := buildVectorStore(&cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector store")
	}
	openCollection(ctx, store, embedder)

	pipeline := rag.NewPipeline(embedder, generator, store, database, cfg.Retrieval.TopK, cfg.Retrieval.ContextLimit)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.New(database, pipeline, cfg.Worker.PollInterval(), cfg.Worker.ErrorBackoff()).Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewReclaimer(database, cfg.Worker.ReclaimInterval(), cfg.Worker.LeaseTimeout(), cfg.Worker.MaxAttempts).Run(ctx)
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(database).Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	wg.Wait()
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

// openCollection makes the collection usable for search. The loader
// owns collection creation; failure here only degrades retrieval, so
// the backend still comes up when Ollama or the index is down.
func openCollection(ctx context.Context, store vectorstore.Store, embedder *embedding.Client) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dim, err := embedder.Dimension(probeCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding dimension probe failed, retrieval degraded until loader runs")
		return
	}
	if err := store.EnsureCollection(probeCtx, dim); err != nil {
		log.Warn().Err(err).Msg("Vector collection unavailable, retrieval degraded")
	}
}

// Package rag implements the retrieval-augmented query pipeline: embed
// the question, retrieve context, build a prompt, generate, persist.
package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/vectorstore"
)

// Answers substituted when an upstream model call fails. The exchange
// is still recorded and the task still completes.
const (
	EmbeddingErrorAnswer  = "Failed to compute an embedding for the question"
	GenerationErrorAnswer = "An error occurred while generating the response"
)

const promptTemplate = `You are the company's AI assistant. Use the provided context and the conversation history to answer the question.
If the answer is not in the context, say that you do not know.

Context from documents:
%s

Conversation history:
%s

Question: %s
Answer:`

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Result, error)
}

// ConversationStore reads and writes the conversation turns of a session.
type ConversationStore interface {
	SaveMessage(ctx context.Context, sessionID uuid.UUID, role, content, context, sources string) error
	FullContext(ctx context.Context, sessionID uuid.UUID) (string, error)
}

// Result is the structured outcome of one processed question.
type Result struct {
	Question  string    `json:"query"`
	Answer    string    `json:"response"`
	SessionID uuid.UUID `json:"session_id"`
}

// Pipeline answers questions against the indexed corpus. All
// collaborators are injected so tests can substitute fakes and multiple
// instances can run with different configurations.
type Pipeline struct {
	embedder     Embedder
	generator    Generator
	searcher     Searcher
	store        ConversationStore
	topK         int
	contextLimit int
}

func NewPipeline(embedder Embedder, generator Generator, searcher Searcher, store ConversationStore, topK, contextLimit int) *Pipeline {
	if topK <= 0 {
		topK = 3
	}
	if contextLimit <= 0 {
		contextLimit = 1000
	}
	return &Pipeline{
		embedder:     embedder,
		generator:    generator,
		searcher:     searcher,
		store:        store,
		topK:         topK,
		contextLimit: contextLimit,
	}
}

// Process answers a question within a session. Infrastructure failures
// downstream of the store degrade the answer instead of propagating: a
// failed embedding or generation yields a fixed placeholder, a failed
// retrieval an empty context. Only store failures return an error.
func (p *Pipeline) Process(ctx context.Context, question string, sessionID uuid.UUID) (*Result, error) {
	log.Info().Str("session_id", sessionID.String()).Str("question", question).Msg("Processing query")

	if err := p.store.SaveMessage(ctx, sessionID, "user", question, "", ""); err != nil {
		return nil, fmt.Errorf("saving user turn: %w", err)
	}

	history, err := p.store.FullContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}

	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		log.Error().Err(err).Msg("Question embedding failed")
		return &Result{Question: question, Answer: EmbeddingErrorAnswer, SessionID: sessionID}, nil
	}

	contextBlock, sourceCount := p.searchContext(ctx, vector)
	prompt := fmt.Sprintf(promptTemplate, contextBlock, history, question)
	log.Debug().Str("prompt", truncate(prompt, 500)).Msg("Generated prompt")

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("Generation failed")
		answer = GenerationErrorAnswer
	}

	err = p.store.SaveMessage(ctx, sessionID, "assistant", answer,
		truncate(contextBlock, p.contextLimit), strconv.Itoa(sourceCount))
	if err != nil {
		return nil, fmt.Errorf("saving assistant turn: %w", err)
	}

	return &Result{Question: question, Answer: answer, SessionID: sessionID}, nil
}

// searchContext retrieves the top-k chunks and labels each with a
// 1-based source ordinal. Retrieval failures degrade to an empty
// context rather than aborting the query.
func (p *Pipeline) searchContext(ctx context.Context, vector []float32) (string, int) {
	results, err := p.searcher.Search(ctx, vector, p.topK)
	if err != nil {
		log.Error().Err(err).Msg("Vector search failed")
		return "", 0
	}
	sections := make([]string, len(results))
	for i, r := range results {
		sections[i] = fmt.Sprintf("Source %d:\n%s", i+1, r.Payload.Text)
	}
	return strings.Join(sections, "\n\n"), len(results)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

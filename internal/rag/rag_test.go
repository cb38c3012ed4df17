package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/vectorstore"
)

type fakeEmbedder struct {
	vector      []float32
	shouldError bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.shouldError {
		return nil, errors.New("embedding service returned status 500")
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeGenerator struct {
	answer      string
	shouldError bool
	lastPrompt  string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.shouldError {
		return "", errors.New("generation timed out")
	}
	return f.answer, nil
}

type fakeSearcher struct {
	results     []vectorstore.Result
	shouldError bool
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Result, error) {
	if f.shouldError {
		return nil, errors.New("vector index unreachable")
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type savedMessage struct {
	role    string
	content string
	context string
	sources string
}

type fakeStore struct {
	history     string
	messages    []savedMessage
	failOnSave  bool
	failOnRole  string
}

func (f *fakeStore) SaveMessage(ctx context.Context, sessionID uuid.UUID, role, content, context_, sources string) error {
	if f.failOnSave && (f.failOnRole == "" || f.failOnRole == role) {
		return errors.New("store unavailable")
	}
	f.messages = append(f.messages, savedMessage{role: role, content: content, context: context_, sources: sources})
	return nil
}

func (f *fakeStore) FullContext(ctx context.Context, sessionID uuid.UUID) (string, error) {
	return f.history, nil
}

func fixtureResults() []vectorstore.Result {
	return []vectorstore.Result{
		{ID: "1", Score: 0.9, Payload: vectorstore.Payload{Text: "refunds are granted within 14 days"}},
		{ID: "2", Score: 0.8, Payload: vectorstore.Payload{Text: "shipping takes 3 days"}},
		{ID: "3", Score: 0.7, Payload: vectorstore.Payload{Text: "support is available by email"}},
	}
}

func TestProcessSuccess(t *testing.T) {
	generator := &fakeGenerator{answer: "Refunds are granted within 14 days."}
	store := &fakeStore{history: "User: hi\n\nAssistant: hello"}
	pipeline := NewPipeline(&fakeEmbedder{}, generator, &fakeSearcher{results: fixtureResults()}, store, 3, 1000)

	sessionID := uuid.New()
	result, err := pipeline.Process(context.Background(), "What is the refund policy?", sessionID)
	require.NoError(t, err)
	assert.Equal(t, "What is the refund policy?", result.Question)
	assert.Equal(t, "Refunds are granted within 14 days.", result.Answer)
	assert.Equal(t, sessionID, result.SessionID)

	// prompt carries labeled context, history, and the question
	assert.Contains(t, generator.lastPrompt, "Source 1:\nrefunds are granted within 14 days")
	assert.Contains(t, generator.lastPrompt, "Source 3:")
	assert.Contains(t, generator.lastPrompt, "User: hi")
	assert.Contains(t, generator.lastPrompt, "Question: What is the refund policy?")

	require.Len(t, store.messages, 2)
	assert.Equal(t, "user", store.messages[0].role)
	assert.Equal(t, "assistant", store.messages[1].role)
	assert.Equal(t, "3", store.messages[1].sources)
	assert.Contains(t, store.messages[1].context, "Source 1:")
}

func TestProcessEmbeddingFailureReturnsPlaceholder(t *testing.T) {
	store := &fakeStore{}
	searcher := &fakeSearcher{results: fixtureResults()}
	generator := &fakeGenerator{answer: "unused"}
	pipeline := NewPipeline(&fakeEmbedder{shouldError: true}, generator, searcher, store, 3, 1000)

	result, err := pipeline.Process(context.Background(), "anything", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, EmbeddingErrorAnswer, result.Answer)
	// retrieval and generation are skipped entirely
	assert.Empty(t, generator.lastPrompt)
	// only the user turn is persisted
	require.Len(t, store.messages, 1)
	assert.Equal(t, "user", store.messages[0].role)
}

func TestProcessRetrievalFailureDegradesToEmptyContext(t *testing.T) {
	generator := &fakeGenerator{answer: "I do not know."}
	store := &fakeStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, generator, &fakeSearcher{shouldError: true}, store, 3, 1000)

	result, err := pipeline.Process(context.Background(), "anything", uuid.New())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.Contains(t, generator.lastPrompt, "Context from documents:\n\n")
	require.Len(t, store.messages, 2)
	assert.Equal(t, "0", store.messages[1].sources)
}

func TestProcessGenerationFailureSubstitutesApology(t *testing.T) {
	store := &fakeStore{}
	pipeline := NewPipeline(&fakeEmbedder{}, &fakeGenerator{shouldError: true}, &fakeSearcher{results: fixtureResults()}, store, 3, 1000)

	result, err := pipeline.Process(context.Background(), "anything", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, GenerationErrorAnswer, result.Answer)
	// the failed exchange is still persisted for audit
	require.Len(t, store.messages, 2)
	assert.Equal(t, GenerationErrorAnswer, store.messages[1].content)
}

func TestProcessStoreFailureIsTerminal(t *testing.T) {
	store := &fakeStore{failOnSave: true}
	pipeline := NewPipeline(&fakeEmbedder{}, &fakeGenerator{}, &fakeSearcher{}, store, 3, 1000)

	_, err := pipeline.Process(context.Background(), "anything", uuid.New())
	assert.Error(t, err)
}

func TestProcessTruncatesPersistedContext(t *testing.T) {
	long := strings.Repeat("long context ", 200)
	store := &fakeStore{}
	searcher := &fakeSearcher{results: []vectorstore.Result{{Payload: vectorstore.Payload{Text: long}}}}
	pipeline := NewPipeline(&fakeEmbedder{}, &fakeGenerator{answer: "ok"}, searcher, store, 3, 100)

	_, err := pipeline.Process(context.Background(), "anything", uuid.New())
	require.NoError(t, err)
	require.Len(t, store.messages, 2)
	assert.LessOrEqual(t, len([]rune(store.messages[1].context)), 100)
}

func TestProcessTopKLimit(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	searcher := &fakeSearcher{results: fixtureResults()}
	pipeline := NewPipeline(&fakeEmbedder{}, generator, searcher, &fakeStore{}, 2, 1000)

	_, err := pipeline.Process(context.Background(), "anything", uuid.New())
	require.NoError(t, err)
	assert.Contains(t, generator.lastPrompt, "Source 2:")
	assert.NotContains(t, generator.lastPrompt, "Source 3:")
}

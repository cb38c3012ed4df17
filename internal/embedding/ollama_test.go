package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "hello", req["prompt"])
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "nomic-embed-text", 5*time.Second)
	vector, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
}

func TestEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "nomic-embed-text", 5*time.Second)
	_, err := client.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 500")
}

func TestEmbedEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "nomic-embed-text", 5*time.Second)
	_, err := client.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float32, 768)})
	}))
	defer server.Close()

	client := NewClient(server.URL, "nomic-embed-text", 5*time.Second)
	dim, err := client.Dimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 768, dim)
}

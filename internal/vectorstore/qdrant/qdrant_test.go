package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/vectorstore"
)

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/documents/exists":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]bool{"exists": false}})
		case r.Method == http.MethodPut && r.URL.Path == "/collections/documents":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			json.NewEncoder(w).Encode(map[string]any{"result": true})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	store := NewStore(Config{URL: server.URL, Collection: "documents"})
	require.NoError(t, store.EnsureCollection(context.Background(), 768))

	vectors := created["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionSkipsWhenPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]bool{"exists": true}})
	}))
	defer server.Close()

	store := NewStore(Config{URL: server.URL, Collection: "documents"})
	assert.NoError(t, store.EnsureCollection(context.Background(), 768))
}

func TestUpsertSendsPointsWithWait(t *testing.T) {
	var body struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/documents/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]string{"status": "acknowledged"}})
	}))
	defer server.Close()

	store := NewStore(Config{URL: server.URL, Collection: "documents"})
	err := store.Upsert(context.Background(), []vectorstore.Point{
		{
			ID:      "7f9c24e5-0000-5000-8000-000000000001",
			Vector:  []float32{0.1, 0.2},
			Payload: vectorstore.Payload{Filename: "a.txt", ChunkIndex: 0, Text: "hello"},
		},
	})
	require.NoError(t, err)
	require.Len(t, body.Points, 1)
	assert.Equal(t, "7f9c24e5-0000-5000-8000-000000000001", body.Points[0].ID)
	assert.Equal(t, "a.txt", body.Points[0].Payload["filename"])
}

func TestSearchDecodesOrderedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/documents/points/search", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(3), req["limit"])
		assert.Equal(t, true, req["with_payload"])
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "p1", "score": 0.92, "payload": map[string]any{"filename": "a.txt", "chunk_index": 2, "text": "first"}},
				{"id": "p2", "score": 0.81, "payload": map[string]any{"filename": "b.txt", "chunk_index": 0, "text": "second"}},
			},
		})
	}))
	defer server.Close()

	store := NewStore(Config{URL: server.URL, Collection: "documents"})
	results, err := store.Search(context.Background(), []float32{0.1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Payload.Text)
	assert.Equal(t, 2, results[0].Payload.ChunkIndex)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := NewStore(Config{URL: server.URL, Collection: "documents"})
	_, err := store.Search(context.Background(), []float32{0.1}, 3)
	assert.Error(t, err)
}

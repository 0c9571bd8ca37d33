package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingFuncUsesExternalService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Texts, 1)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"embeddings": [][]float64{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	t.Setenv("EMBEDDING_ENDPOINT", srv.URL)
	t.Setenv("USE_LOCAL_EMBEDDINGS", "")

	embed := CreateChromemEmbeddingFunc()
	vector, err := embed(context.Background(), "analysis report text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbeddingFuncFallsBackToLocal(t *testing.T) {
	t.Setenv("USE_LOCAL_EMBEDDINGS", "true")

	embed := CreateChromemEmbeddingFunc()
	vector, err := embed(context.Background(), "analysis report text")
	require.NoError(t, err)
	assert.Len(t, vector, embeddingDim)
}

func TestEmbeddingFuncFallsBackOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("EMBEDDING_ENDPOINT", srv.URL)
	t.Setenv("USE_LOCAL_EMBEDDINGS", "")

	embed := CreateChromemEmbeddingFunc()
	vector, err := embed(context.Background(), "analysis report text")
	require.NoError(t, err)
	assert.Len(t, vector, embeddingDim)
}

func TestLocalEmbeddingIsDeterministic(t *testing.T) {
	a := createLocalEmbedding("the same text")
	b := createLocalEmbedding("the same text")
	c := createLocalEmbedding("completely different content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, embeddingDim)
}

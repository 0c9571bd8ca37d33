package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
)

const embeddingDim = 128

// CreateChromemEmbeddingFunc creates a chromem-compatible embedding function.
// It tries the external embedding service first and falls back to cheap local
// embeddings so report storage keeps working offline.
func CreateChromemEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embedding, err := createExternalEmbedding(ctx, text)
		if err == nil {
			return embedding, nil
		}

		log.Printf("⚠️  External embedding service failed (%v), falling back to local embeddings", err)
		return createLocalEmbedding(text), nil
	}
}

// createExternalEmbedding calls the external embedding service
func createExternalEmbedding(ctx context.Context, text string) ([]float32, error) {
	if os.Getenv("USE_LOCAL_EMBEDDINGS") == "true" {
		return nil, fmt.Errorf("external embeddings disabled via USE_LOCAL_EMBEDDINGS=true")
	}

	endpoint := "https://embeddings.knirv.com"
	if customEndpoint := os.Getenv("EMBEDDING_ENDPOINT"); customEndpoint != "" {
		endpoint = customEndpoint
	}

	reqBody, err := json.Marshal(map[string]interface{}{"texts": []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Success    bool        `json:"success"`
		Embeddings [][]float64 `json:"embeddings"`
		Error      string      `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if !response.Success || len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embedding service error: %s", response.Error)
	}

	embedding := make([]float32, len(response.Embeddings[0]))
	for i, val := range response.Embeddings[0] {
		embedding[i] = float32(val)
	}
	return embedding, nil
}

// createLocalEmbedding builds a deterministic character-frequency embedding.
// Crude, but good enough for recall over a handful of analysis reports.
func createLocalEmbedding(text string) []float32 {
	embedding := make([]float32, embeddingDim)

	embedding[0] = float32(len(text)) / 1000.0

	charCounts := make(map[rune]int)
	for _, char := range text {
		charCounts[char]++
	}

	commonChars := []rune{'a', 'e', 'i', 'o', 'u', ' ', '.', ',', '\n'}
	for j, char := range commonChars {
		if j+1 < embeddingDim {
			embedding[j+1] = float32(charCounts[char]) / float32(len(text)+1)
		}
	}

	hash := 0
	for _, char := range text {
		hash = (hash*31 + int(char)) % 1000
	}
	for j := len(commonChars) + 1; j < embeddingDim; j++ {
		embedding[j] = float32((hash+j)%100) / 100.0
	}

	return embedding
}

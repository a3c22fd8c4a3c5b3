package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"
)

// OllamaEmbedder embeds text via a local Ollama server's /api/embed
// endpoint and unit-normalizes the result, the same recipe as the teacher's
// ToolEmbeddingCache. It additionally caches per-process tool vectors
// registered via RegisterToolEmbedding, since the Executor's
// reference_tool_embedding query-vector source needs a lookup, not a call
// out to the embedding model.
//
// Thread Safety: safe for concurrent use; toolVecs is guarded by mu.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu       sync.RWMutex
	toolVecs map[string][]float32 // key: toolID + "\x00" + embeddingField
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:  baseURL,
		model:    model,
		client:   &http.Client{Timeout: 10 * time.Second},
		toolVecs: make(map[string][]float32),
	}
}

type ollamaEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text, embeddingField string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedReq{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out ollamaEmbedResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("embed response contained no vectors")
	}

	return l2Normalize(out.Embeddings[0]), nil
}

// RegisterToolEmbedding seeds the in-process cache used by
// EmbeddingOfTool; called once per tool at index-build time, mirroring how
// the vector store's own payload would be populated out of band.
func (e *OllamaEmbedder) RegisterToolEmbedding(toolID, embeddingField string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toolVecs[toolEmbedKey(toolID, embeddingField)] = vec
}

func (e *OllamaEmbedder) EmbeddingOfTool(_ context.Context, toolID, embeddingField string) ([]float32, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.toolVecs[toolEmbedKey(toolID, embeddingField)]
	return v, ok, nil
}

func toolEmbedKey(toolID, embeddingField string) string {
	return toolID + "\x00" + embeddingField
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

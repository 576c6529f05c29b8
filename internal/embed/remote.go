package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote embeds text through an OpenAI-compatible /embeddings endpoint.
// Determinism follows the upstream API: most embedding endpoints return
// near-identical vectors for repeated input, which is close enough for
// metric reproducibility but not bit-exact.
type Remote struct {
	baseURL    string
	apiKey     string
	model      string
	dim        int
	batchSize  int
	httpClient *http.Client
}

type RemoteOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
}

func NewRemote(opts RemoteOptions) *Remote {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 16
	}
	return &Remote{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		dim:        opts.Dimension,
		batchSize:  batch,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *Remote) Dim() int {
	return r.dim
}

// Encode calls the embeddings API in batches to stay under provider input
// limits, then normalizes every vector to unit length.
func (r *Remote) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := r.encodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d texts", len(out), len(texts))
	}

	for _, vec := range out {
		Normalize(vec)
	}
	return out, nil
}

func (r *Remote) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": r.model,
		"input": texts,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/embeddings", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// The API is allowed to reorder data entries; the index field restores
	// positional correspondence with the input.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

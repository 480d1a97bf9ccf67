package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/httputil"
)

const defaultJinaEndpoint = "https://api.jina.ai/v1/embeddings"

// JinaClient implements Client for the Jina embeddings API.
type JinaClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *retryablehttp.Client
}

type JinaEmbeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
	Input         []string `json:"input"`
}

type JinaEmbeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func NewJinaClient(cfg config.EmbeddingConfig, client *retryablehttp.Client) (*JinaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("jina api_key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultJinaEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = "jina-embeddings-v3"
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1024
	}
	return &JinaClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		dimensions: dims,
		client:     client,
	}, nil
}

func (c *JinaClient) EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := JinaEmbeddingRequest{
		Model:         c.model,
		Task:          string(task),
		Dimensions:    c.dimensions,
		EmbeddingType: "float",
		Input:         texts,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := httputil.DoJSON(ctx, c.client, "jina", http.MethodPost, c.endpoint, header, req)
	if err != nil {
		return nil, err
	}

	var apiResp JinaEmbeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return orderByIndex(len(texts), len(apiResp.Data), func(i int) (int, []float32) {
		return apiResp.Data[i].Index, apiResp.Data[i].Embedding
	})
}

func (c *JinaClient) Dimensions() int {
	return c.dimensions
}

func (c *JinaClient) Model() string {
	return c.model
}

// orderByIndex places n returned items by their reported index.
func orderByIndex(want, n int, item func(i int) (int, []float32)) ([][]float32, error) {
	if n != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, n)
	}
	embeddings := make([][]float32, want)
	for i := 0; i < n; i++ {
		idx, emb := item(i)
		if idx < 0 || idx >= want {
			return nil, fmt.Errorf("invalid embedding index: %d", idx)
		}
		embeddings[idx] = emb
	}
	return embeddings, nil
}

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

// VolcEngineClient implements Client for VolcEngine's multimodal embedding API.
// The task hint is ignored.
type VolcEngineClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *retryablehttp.Client
}

// VolcEngineEmbeddingRequest is the request format for VolcEngine API
type VolcEngineEmbeddingRequest struct {
	Input          []VolcEngineInput `json:"input"`
	Model          string            `json:"model"`
	EncodingFormat string            `json:"encoding_format,omitempty"`
	Dimensions     int               `json:"dimensions,omitempty"`
}

// VolcEngineInput represents an input item for embedding
type VolcEngineInput struct {
	Type string `json:"type"` // "text" | "image_url" | "video_url"
	Text string `json:"text,omitempty"`
}

// VolcEngineEmbeddingResponse is the response from VolcEngine API
type VolcEngineEmbeddingResponse struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
	Usage  struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}

type VolcEngineEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
	Object    string    `json:"object"`
}

// NewVolcEngineClient creates a new VolcEngine embedding client
func NewVolcEngineClient(cfg config.EmbeddingConfig, client *retryablehttp.Client) (*VolcEngineClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("volcengine api_key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://ark.cn-beijing.volces.com/api/v3/embeddings/multimodal"
	}

	model := cfg.Model
	if model == "" {
		model = "doubao-embedding-vision-250615"
	}

	return &VolcEngineClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
		client:     client,
	}, nil
}

// EmbedBatch generates embeddings for multiple texts
func (c *VolcEngineClient) EmbedBatch(ctx context.Context, texts []string, _ Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// The multimodal embeddings endpoint accepts a single sample per request.
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := c.embedText(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vector
	}

	return embeddings, nil
}

func (c *VolcEngineClient) embedText(ctx context.Context, text string) ([]float32, error) {
	req := VolcEngineEmbeddingRequest{
		Input: []VolcEngineInput{{
			Type: "text",
			Text: text,
		}},
		Model:          c.model,
		EncodingFormat: "float",
		Dimensions:     c.dimensions,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := httputil.DoJSON(ctx, c.client, "volcengine", http.MethodPost, c.endpoint, header, req)
	if err != nil {
		return nil, err
	}

	var apiResp VolcEngineEmbeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	data, err := parseVolcEngineEmbeddingData(apiResp.Data)
	if err != nil {
		return nil, err
	}
	if len(data) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(data))
	}

	return data[0].Embedding, nil
}

// Dimensions returns the dimension of the embeddings
func (c *VolcEngineClient) Dimensions() int {
	return c.dimensions
}

func (c *VolcEngineClient) Model() string {
	return c.model
}

// parseVolcEngineEmbeddingData accepts both the array and the single-object form of "data".
func parseVolcEngineEmbeddingData(raw json.RawMessage) ([]VolcEngineEmbeddingData, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty embedding data")
	}

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case ' ', '\n', '\r', '\t':
			continue
		case '[':
			var data []VolcEngineEmbeddingData
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, fmt.Errorf("failed to parse embedding array: %w", err)
			}
			return data, nil
		case '{':
			var data VolcEngineEmbeddingData
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, fmt.Errorf("failed to parse embedding object: %w", err)
			}
			return []VolcEngineEmbeddingData{data}, nil
		default:
			return nil, fmt.Errorf("unexpected embedding data format")
		}
	}

	return nil, fmt.Errorf("empty embedding data")
}

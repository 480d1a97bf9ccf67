package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/httputil"
)

// Task tells task-aware models which adapter to apply.
type Task string

const (
	TaskTextMatching     Task = "text-matching"
	TaskRetrievalQuery   Task = "retrieval.query"
	TaskRetrievalPassage Task = "retrieval.passage"
	TaskSeparation       Task = "separation"
	TaskClassification   Task = "classification"
)

// Client is the interface for embedding API clients
type Client interface {
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Encoder turns texts into vectors; result[i] belongs to texts[i].
type Encoder interface {
	Encode(ctx context.Context, texts []string, task Task) ([][]float32, error)
}

// Service splits encode calls into provider batches and runs them on a worker pool.
type Service struct {
	client    Client
	batchSize int
	workers   int
	log       logrus.FieldLogger
}

// NewService creates the provider named in cfg and wraps it in a Service.
func NewService(cfg config.EmbeddingConfig, log logrus.FieldLogger) (*Service, error) {
	if log == nil {
		log = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := httputil.NewRetryableHTTPClient(cfg.RetryMax, timeout, log)

	var client Client
	var err error

	switch cfg.Provider {
	case "", "jina":
		client, err = NewJinaClient(cfg, httpClient)
	case "volcengine":
		client, err = NewVolcEngineClient(cfg, httpClient)
	case "openai":
		client, err = NewOpenAIClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	log.WithFields(logrus.Fields{
		"provider":   cfg.Provider,
		"model":      client.Model(),
		"dimensions": client.Dimensions(),
	}).Info("embedding client initialized")

	return NewServiceWithClient(client, cfg.BatchSize, cfg.Workers, log), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(client Client, batchSize, workers int, log logrus.FieldLogger) *Service {
	if batchSize <= 0 {
		batchSize = 10
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{client: client, batchSize: batchSize, workers: workers, log: log}
}

// Encode generates embeddings for texts. Empty texts are not sent to the provider
// and come back as nil vectors.
func (s *Service) Encode(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	validTexts := make([]string, 0, len(texts))
	validIndices := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			validTexts = append(validTexts, text)
			validIndices = append(validIndices, i)
		}
	}
	if len(validTexts) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(validTexts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(validTexts) {
			end = len(validTexts)
		}
		batch := validTexts[start:end]
		indices := validIndices[start:end]
		first := start

		g.Go(func() error {
			embeddings, err := s.client.EmbedBatch(gctx, batch, task)
			if err != nil {
				return fmt.Errorf("failed to embed batch %d-%d: %w", first, first+len(batch), err)
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", first, first+len(batch), len(batch), len(embeddings))
			}
			for j, emb := range embeddings {
				results[indices[j]] = emb
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"texts":   len(texts),
		"batches": (len(validTexts) + s.batchSize - 1) / s.batchSize,
		"task":    task,
	}).Debug("encode finished")

	return results, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.client.Dimensions()
}

func (s *Service) Model() string {
	return s.client.Model()
}

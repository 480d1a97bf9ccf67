package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/httputil"
)

// QdrantStore talks to Qdrant over its REST API.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	log     logrus.FieldLogger

	mu     sync.Mutex
	closed bool
}

func NewQdrantStore(cfg config.StoreConfig, log logrus.FieldLogger) (*QdrantStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &QdrantStore{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  httputil.NewRetryableHTTPClient(cfg.RetryMax, timeout, log),
		log:     log,
	}
	if log != nil {
		log.WithField("url", s.baseURL).Info("qdrant client initialized")
	}
	return s, nil
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	data, err := s.doRequest(ctx, http.MethodGet, collectionPath(name)+"/exists", nil)
	if err != nil {
		return false, err
	}
	var parsed struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return false, fmt.Errorf("parse qdrant exists response: %w", err)
	}
	return parsed.Result.Exists, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, col Collection) error {
	distance := col.Distance
	if distance == "" {
		distance = Cosine
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     col.Dimension,
			"distance": distance,
		},
	}
	_, err := s.doRequest(ctx, http.MethodPut, collectionPath(col.Name), req)
	return err
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(points))
	for _, p := range points {
		item := map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
		}
		if p.Payload != nil {
			item["payload"] = p.Payload
		}
		payload = append(payload, item)
	}
	req := map[string]any{"points": payload}
	path := collectionPath(collection) + "/points"
	if wait {
		path += "?wait=true"
	}
	_, err := s.doRequest(ctx, http.MethodPut, path, req)
	return err
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	data, err := s.doRequest(ctx, http.MethodPost, collectionPath(collection)+"/points/count", map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("parse qdrant count response: %w", err)
	}
	return parsed.Result.Count, nil
}

func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (s *QdrantStore) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	header := http.Header{}
	if s.apiKey != "" {
		header.Set("api-key", s.apiKey)
	}
	return httputil.DoJSON(ctx, s.client, "qdrant", method, s.baseURL+path, header, body)
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/httputil"
)

const (
	defaultHubEndpoint = "https://datasets-server.huggingface.co"
	maxHubPageSize     = 100
)

// HubSource pages through the Hugging Face datasets-server /rows API.
type HubSource struct {
	endpoint string
	dataset  string
	subset   string
	token    string
	pageSize int
	split    Split
	fields   Fields
	client   *retryablehttp.Client
	log      logrus.FieldLogger
}

type hubRowsResponse struct {
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func NewHubSource(cfg config.DatasetConfig, split Split, log logrus.FieldLogger) *HubSource {
	if log == nil {
		log = logrus.New()
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultHubEndpoint
	}
	subset := cfg.Subset
	if subset == "" {
		subset = "default"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxHubPageSize {
		pageSize = maxHubPageSize
	}
	return &HubSource{
		endpoint: endpoint,
		dataset:  cfg.Name,
		subset:   subset,
		token:    cfg.Token,
		pageSize: pageSize,
		split:    split,
		fields:   Fields{Instruction: cfg.InstructionField, Output: cfg.OutputField}.withDefaults(),
		client:   httputil.NewRetryableHTTPClient(0, 30*time.Second, log),
		log:      log,
	}
}

func (s *HubSource) Load(ctx context.Context) ([]Row, error) {
	// The first page tells us the split size, which percent bounds need.
	probe, err := s.fetch(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	total := probe.NumRowsTotal
	start, end := s.split.Range(total)

	s.log.WithFields(logrus.Fields{
		"dataset": s.dataset,
		"split":   s.split.String(),
		"total":   total,
		"start":   start,
		"end":     end,
	}).Info("loading dataset rows")

	rows := make([]Row, 0, end-start)
	for offset := start; offset < end; {
		length := s.pageSize
		if offset+length > end {
			length = end - offset
		}
		page, err := s.fetch(ctx, offset, length)
		if err != nil {
			return nil, err
		}
		if len(page.Rows) == 0 {
			break
		}
		for _, r := range page.Rows {
			rows = append(rows, s.fields.rowFromRecord(r.RowIdx, r.Row))
		}
		offset += len(page.Rows)
	}
	return rows, nil
}

func (s *HubSource) fetch(ctx context.Context, offset, length int) (*hubRowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", s.dataset)
	q.Set("config", s.subset)
	q.Set("split", s.split.Name)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	body, err := httputil.DoJSON(ctx, s.client, "datasets-server", http.MethodGet, s.endpoint+"/rows?"+q.Encode(), header, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s rows %d-%d: %w", s.dataset, offset, offset+length, err)
	}
	var resp hubRowsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse datasets-server response: %w", err)
	}
	return &resp, nil
}

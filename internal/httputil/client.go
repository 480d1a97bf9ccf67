package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/logger"
)

// NewRetryableHTTPClient returns a retryable client with the given retryMax and timeout.
// retryMax 0 sends every request exactly once.
func NewRetryableHTTPClient(retryMax int, timeout time.Duration, log logrus.FieldLogger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Backoff = retryablehttp.DefaultBackoff
	client.CheckRetry = RetryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if log != nil {
		client.Logger = logger.NewLeveledLogrus(log.WithField("component", "http"))
	} else {
		client.Logger = nil
	}
	return client
}

// RetryPolicy is a retryablehttp.CheckRetry that never retries 400 responses or
// cancelled contexts.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if resp != nil && resp.StatusCode == http.StatusBadRequest {
		return false, err
	}

	shouldRetry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	return shouldRetry, nil
}

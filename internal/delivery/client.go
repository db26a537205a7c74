package delivery

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"

	"github.com/arclight-ai/arclight-go/internal/batch"
)

// ingestPath is the ingestion wire contract: one JSON object per call
// containing an ordered list of row objects.
const ingestPath = "/v1/rows"

// Config holds everything the worker needs, resolved once at initialization.
type Config struct {
	URL    string
	APIKey string

	FlushInterval time.Duration
	Batch         batch.Limits

	// RetryBudget bounds transient retries per batch. Attempt timeouts are
	// independent of any flush deadline.
	RetryBudget    int
	AttemptTimeout time.Duration
	RetryMinWait   time.Duration
	RetryMaxWait   time.Duration
}

// newHTTPClient builds the delivery client: resty for ergonomics on top of a
// retryable transport that backs off on network errors, 429, and 5xx. The
// transport handles the retry budget so a single Post call either succeeds,
// returns a permanent (4xx) response, or errors after exhausting retries.
func newHTTPClient(cfg Config) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryBudget
	retryClient.RetryWaitMin = cfg.RetryMinWait
	retryClient.RetryWaitMax = cfg.RetryMaxWait
	retryClient.HTTPClient.Timeout = cfg.AttemptTimeout
	retryClient.Logger = nil

	client := resty.New()
	client.
		SetBaseURL(cfg.URL).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetHeader("User-Agent", "arclight-go/1.0").
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return client
}

// buildBody assembles the batch payload without re-parsing the serialized
// rows: {"rows":[row,row,...]}.
func buildBody(items [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"rows":[`)
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// gzipBytes compresses a request body.
func gzipBytes(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	return buf.Bytes(), nil
}

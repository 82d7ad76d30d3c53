package langfuse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	ingestionPath        = "/api/public/ingestion"
	scoreRequestTimeout  = 10 * time.Second
	scoreResponseBodyCap = 4 * 1024
)

// scoreClient posts score-create events to the Langfuse ingestion API.
// Scores have no OTLP representation, so they bypass the span exporter.
type scoreClient struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func newScoreClient(cfg *Config) *scoreClient {
	return &scoreClient{
		baseURL:    cfg.Host,
		authHeader: basicAuth(cfg.PublicKey, cfg.SecretKey.Value()),
		httpClient: &http.Client{Timeout: scoreRequestTimeout},
	}
}

// ingestionEvent is one item of an ingestion batch.
type ingestionEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"body"`
}

// ingestionBatch is the ingestion API request payload.
type ingestionBatch struct {
	Batch []ingestionEvent `json:"batch"`
}

// scoreBody is the score-create event body.
type scoreBody struct {
	ID      string  `json:"id"`
	TraceID string  `json:"traceId,omitempty"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// Create posts a single score. The request is bounded by the client timeout
// and the caller's context.
func (c *scoreClient) Create(ctx context.Context, p ScoreParams) error {
	if p.Name == "" {
		return errors.New("score name is required")
	}

	payload, err := json.Marshal(ingestionBatch{
		Batch: []ingestionEvent{{
			ID:        uuid.New().String(),
			Type:      "score-create",
			Timestamp: time.Now().UTC(),
			Body: scoreBody{
				ID:      uuid.New().String(),
				TraceID: p.TraceID,
				Name:    p.Name,
				Value:   p.Value,
				Comment: p.Comment,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("marshaling score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting score: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The ingestion API answers 207 for accepted batches.
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, scoreResponseBodyCap))
		return fmt.Errorf("ingestion returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

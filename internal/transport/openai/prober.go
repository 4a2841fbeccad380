// Package openai probes an OpenAI-compatible embedding endpoint for the
// dimension of the vectors it produces.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/metrics"
)

// ErrProvider wraps every failure reported by the embedding endpoint.
var ErrProvider = errors.New("embedding provider error")

// DefaultProbeText is embedded to measure the vector dimension.
const DefaultProbeText = "vecshift dimension probe"

// Prober asks the embedding model for one vector and reports its length.
type Prober struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	text       string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // requested output dimension; 0 uses the model default
	Provider   string
	ProbeText  string
	Logger     *zap.Logger
}

// NewProber creates an OpenAI-compatible embedding prober.
func NewProber(cfg *Config) *Prober {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	text := cfg.ProbeText
	if text == "" {
		text = DefaultProbeText
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Prober{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   provider,
		text:       text,
		logger:     logger,
	}
}

// ProbeDimension embeds the probe text and returns the vector length.
func (p *Prober) ProbeDimension(ctx context.Context) (int, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{p.text},
		Model:          p.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, string(p.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, string(p.model), "api_error").Inc()
		return 0, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, string(p.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, string(p.model), "empty_response").Inc()
		return 0, fmt.Errorf("empty embedding response: %w", ErrProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, string(p.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p.provider, string(p.model)).Observe(duration.Seconds())

	dim := len(resp.Data[0].Embedding)
	p.logger.Debug("Embedding probe completed",
		zap.String("provider", p.provider),
		zap.String("model", string(p.model)),
		zap.Duration("duration", duration),
		zap.Int("dimensions", dim),
	)
	return dim, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Prober) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, ErrProvider)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}

	return fmt.Errorf("embedding request failed: %w: %w", ErrProvider, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

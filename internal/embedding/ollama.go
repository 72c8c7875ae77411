package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the model the vulnerability description index is
	// built with.
	DefaultModel = "nomic-embed-text"

	// DefaultTimeout bounds one embedding request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond limits how fast interactive searches hit
	// the backend.
	DefaultRequestsPerSecond = 5

	apiPathTags       = "/api/tags"
	apiPathEmbeddings = "/api/embeddings"
)

// ErrEmptyText is returned when asked to embed blank text.
var ErrEmptyText = errors.New("empty text")

// Ollama generates embeddings with a local Ollama server.
type Ollama struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(o *Ollama) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(o *Ollama) {
		o.model = model
	}
}

// WithDimensions makes Embed reject vectors of any other length. Zero
// accepts any length.
func WithDimensions(dims int) OllamaOption {
	return func(o *Ollama) {
		o.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(o *Ollama) {
		o.client.Timeout = timeout
	}
}

// WithRateLimit sets the request rate and burst.
func WithRateLimit(perSecond float64, burst int) OllamaOption {
	return func(o *Ollama) {
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) OllamaOption {
	return func(o *Ollama) {
		o.logger = logger
	}
}

// NewOllama creates an Ollama embedding client.
func NewOllama(opts ...OllamaOption) *Ollama {
	o := &Ollama{
		baseURL: DefaultOllamaURL,
		model:   DefaultModel,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(DefaultRequestsPerSecond, DefaultRequestsPerSecond),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Embed generates an embedding for text.
func (o *Ollama) Embed(ctx context.Context, text string) (Embedding, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Embedding{}, ErrEmptyText
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return Embedding{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(embedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return Embedding{}, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+apiPathEmbeddings, bytes.NewReader(body))
	if err != nil {
		return Embedding{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return Embedding{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Embedding{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Embedding{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return Embedding{}, fmt.Errorf("ollama returned an empty embedding for model %s", o.model)
	}
	if o.dimensions > 0 && len(result.Embedding) != o.dimensions {
		return Embedding{}, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(result.Embedding), o.dimensions)
	}

	o.logger.Debug("embedded text",
		zap.String("model", o.model),
		zap.Int("chars", len(text)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Duration("elapsed", time.Since(start)))
	return Embedding{Vector: result.Embedding}, nil
}

// ModelName returns the embedding model.
func (o *Ollama) ModelName() string {
	return o.model
}

// Status reports whether the server is reachable and has the model pulled.
type Status struct {
	Available bool     `json:"available"`
	HasModel  bool     `json:"hasModel"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Status queries the server's installed models.
func (o *Ollama) Status(ctx context.Context) Status {
	models, err := o.models(ctx)
	if err != nil {
		return Status{Error: err.Error()}
	}
	st := Status{Available: true, Models: models}
	for _, m := range models {
		// Ollama reports "name:tag"; a bare model name means ":latest".
		if m == o.model || m == o.model+":latest" {
			st.HasModel = true
		}
	}
	return st
}

func (o *Ollama) models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+apiPathTags, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama is not running: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// readErrorBody returns at most 512 bytes of an error response.
func readErrorBody(body io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(b))
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

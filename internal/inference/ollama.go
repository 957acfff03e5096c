// Package inference wraps the local Ollama HTTP API behind the two capabilities
// the pipeline consumes: text generation and model listing.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 30 * time.Second

	// Low temperature keeps classification output stable between runs.
	generateTemperature = 0.1
	generateTopP        = 0.9
)

// Client talks to an Ollama server.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the Ollama endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout sets the fixed per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New constructs an Ollama client.
func New(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		client:  &http.Client{},
		logger:  logger.With().Str("component", "inference").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- Ollama wire types ----

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate sends prompt to model and returns the raw completion text. Failures
// map onto the transient error taxonomy: unreachable service or a non-200
// status is ErrInferenceUnavailable, a deadline hit is ErrInferenceTimeout.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: generateTemperature,
			TopP:        generateTopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.transportError(model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.transportError(model, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("model", model).Msg("ollama returned non-200")
		return "", &cserrors.InferenceError{Model: model, Err: cserrors.ErrInferenceUnavailable}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", &cserrors.InferenceError{Model: model, Err: cserrors.ErrInvalidResponse}
	}
	if gr.Error != "" {
		return "", &cserrors.InferenceError{Model: model, Err: cserrors.ErrInferenceUnavailable}
	}

	c.logger.Debug().
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("response_len", len(gr.Response)).
		Msg("ollama generate")

	return gr.Response, nil
}

// ListModels returns the names of models the server has available.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError("", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &cserrors.InferenceError{Err: cserrors.ErrInferenceUnavailable}
	}

	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &cserrors.InferenceError{Err: cserrors.ErrInvalidResponse}
	}
	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping reports whether the server answers at all; used by the health checker.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) transportError(model string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &cserrors.InferenceError{Model: model, Err: cserrors.ErrInferenceTimeout}
	}
	if errors.Is(err, context.Canceled) {
		return &cserrors.InferenceError{Model: model, Err: cserrors.ErrInferenceUnavailable}
	}
	return &cserrors.InferenceError{Model: model, Err: fmt.Errorf("%w: %v", cserrors.ErrInferenceUnavailable, err)}
}

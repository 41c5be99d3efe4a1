package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "text-embedding-3-small"
	DefaultDimensions    = 1536
	DefaultMaxInputChars = 32000
	DefaultRequestDelay  = 20 * time.Millisecond
)

// Client embeds text through an OpenAI-compatible /embeddings endpoint.
// It holds no credential; callers pass one per call so it can change at runtime.
type Client struct {
	baseURL       string
	model         string
	dimension     int
	maxInputChars int
	requestDelay  time.Duration
	client        *http.Client
	logger        *slog.Logger
}

// Options configures a Client. Zero values fall back to the defaults above;
// a negative RequestDelay disables the pause between batch calls.
type Options struct {
	BaseURL       string
	Model         string
	Dimensions    int
	MaxInputChars int
	RequestDelay  time.Duration
	Timeout       time.Duration
	Logger        *slog.Logger
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	switch {
	case opts.RequestDelay < 0:
		opts.RequestDelay = 0
	case opts.RequestDelay == 0:
		opts.RequestDelay = DefaultRequestDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:       opts.BaseURL,
		model:         opts.Model,
		dimension:     opts.Dimensions,
		maxInputChars: opts.MaxInputChars,
		requestDelay:  opts.RequestDelay,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: opts.Logger,
	}
}

// EmbedOne embeds a single text. The input is cut to maxInputChars runes first.
func (c *Client) EmbedOne(ctx context.Context, text, credential string) ([]float32, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	reqBody := embeddingRequest{
		Model:      c.model,
		Input:      truncate(text, c.maxInputChars),
		Dimensions: c.dimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Reason: ReasonTransport, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		detail := http.StatusText(resp.StatusCode)
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil && errResp.Error.Message != "" {
			detail = errResp.Error.Message
		}
		if detail == "" {
			detail = resp.Status
		}
		return nil, &ProviderError{Reason: ReasonUpstream, StatusCode: resp.StatusCode, Detail: detail}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, &ProviderError{
			Reason:     ReasonUpstream,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("failed to parse response (body: %s)", bodyPreview),
			Err:        err,
		}
	}

	if len(embResp.Data) == 0 {
		return nil, &ProviderError{Reason: ReasonUpstream, StatusCode: resp.StatusCode, Detail: "no embeddings returned"}
	}

	vec := embResp.Data[0].Embedding
	if len(vec) != c.dimension {
		return nil, &ProviderError{
			Reason:     ReasonUpstream,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("expected %d dimensions, got %d", c.dimension, len(vec)),
		}
	}

	return vec, nil
}

// EmbedBatch embeds texts one at a time with a short pause between calls.
// An upstream failure for one text yields a zero vector in its slot; missing
// credentials, transport failures and cancellation abort the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, credential string, onProgress func(done, total int)) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))

	for i, text := range texts {
		vec, err := c.EmbedOne(ctx, text, credential)
		if err != nil {
			if abortsBatch(err) {
				return nil, err
			}
			c.logger.Warn("embedding failed, storing zero vector",
				"index", i,
				"model", c.model,
				"error", err,
			)
			vec = make([]float32, c.dimension)
		} else if onProgress != nil {
			onProgress(i+1, len(texts))
		}
		embeddings = append(embeddings, vec)

		if i < len(texts)-1 && c.requestDelay > 0 {
			if err := sleep(ctx, c.requestDelay); err != nil {
				return nil, err
			}
		}
	}

	return embeddings, nil
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) ModelName() string {
	return c.model
}

func abortsBatch(err error) bool {
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Reason == ReasonTransport
}

func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ashureev/codemate/internal/config"
)

const (
	healthTimeout   = 5 * time.Second
	maxErrorBodyLen = 500
)

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type wireOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  wireOptions   `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Client is an Ollama-compatible chat client.
type Client struct {
	baseURL       string
	model         string
	options       wireOptions
	timeout       time.Duration
	visionTimeout time.Duration
	http          *http.Client
	logger        *slog.Logger
}

// NewClient creates a client from the model config.
func NewClient(cfg config.ModelConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Name,
		options: wireOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
		},
		timeout:       cfg.Timeout,
		visionTimeout: cfg.VisionTimeout,
		http:          &http.Client{},
		logger:        logger,
	}
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) timeoutFor(req ChatRequest) time.Duration {
	if len(req.Images) > 0 && c.visionTimeout > 0 {
		return c.visionTimeout
	}
	return c.timeout
}

// Chat sends the conversation and returns the raw reply content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model:    model,
		Messages: make([]wireMessage, len(req.Messages)),
		Stream:   false,
		Options:  c.options,
	}
	for i, m := range req.Messages {
		body.Messages[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	if n := len(body.Messages); n > 0 && len(req.Images) > 0 {
		body.Messages[n-1].Images = req.Images
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.Error("Model service error", "status", resp.StatusCode, "model", model)
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", classifyTransportError(ctx, err)
		}
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrStatus, out.Error)
	}

	c.logger.Info("Model response received",
		"model", model,
		"messages", len(req.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out.Message.Content, nil
}

// Health probes the version endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("model request: %w", err)
}
